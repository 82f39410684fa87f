package contract

import (
	"context"

	"notechat-be/internal/entity"
	"notechat-be/internal/repository/specification"
)

type UserRepository interface {
	// FindOne returns (nil, nil) when nothing matches.
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error)
}
