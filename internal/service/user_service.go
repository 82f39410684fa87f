package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"notechat-be/internal/repository/contract"
	"notechat-be/internal/repository/specification"

	"github.com/patrickmn/go-cache"
)

var ErrUserNotFound = errors.New("user not found")

// UserService answers the handshake's "does this account still exist"
// question. Positive answers are cached; misses always hit the database so a
// freshly registered user can connect immediately.
type UserService struct {
	repo  contract.UserRepository
	known *cache.Cache
}

func NewUserService(repo contract.UserRepository, ttl time.Duration) *UserService {
	return &UserService{
		repo:  repo,
		known: cache.New(ttl, 2*ttl),
	}
}

func (s *UserService) EnsureExists(ctx context.Context, userID int64) error {
	key := strconv.FormatInt(userID, 10)
	if _, found := s.known.Get(key); found {
		return nil
	}

	user, err := s.repo.FindOne(ctx, specification.ByID{ID: userID})
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", userID, err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	s.known.Set(key, struct{}{}, cache.DefaultExpiration)
	return nil
}
