package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"notechat-be/internal/entity"

	"github.com/redis/go-redis/v9"
)

// ErrWindowChanged means a message was stored after the caller read the
// generation, so the rows it loaded may be missing it.
var ErrWindowChanged = errors.New("history window changed during fill")

// HistoryCache keeps the newest messages of each conversation in a Redis
// list, newest at the head, exactly as the database orders them.
//
// Writes never edit the list. Invalidate drops it and bumps a per
// conversation generation counter; Fill only stores a database snapshot when
// the generation is still the one read before the query.
type HistoryCache struct {
	rdb  *redis.Client
	size int
	ttl  time.Duration
}

func NewHistoryCache(rdb *redis.Client, size int, ttl time.Duration) *HistoryCache {
	return &HistoryCache{rdb: rdb, size: size, ttl: ttl}
}

func historyKey(conversationID int64) string {
	return fmt.Sprintf("chat:history:%d", conversationID)
}

func generationKey(conversationID int64) string {
	return fmt.Sprintf("chat:history:%d:gen", conversationID)
}

// Recent returns ok=false on a miss, including when limit exceeds the window.
func (c *HistoryCache) Recent(ctx context.Context, conversationID int64, limit int) ([]*entity.ChatMessage, bool, error) {
	if limit > c.size {
		return nil, false, nil
	}

	values, err := c.rdb.LRange(ctx, historyKey(conversationID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, false, nil
	}

	messages := make([]*entity.ChatMessage, 0, len(values))
	for _, v := range values {
		var m entity.ChatMessage
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, false, fmt.Errorf("decode cached message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, true, nil
}

// Generation must be read before loading the rows handed to Fill.
func (c *HistoryCache) Generation(ctx context.Context, conversationID int64) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(conversationID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Fill replaces the window with messages, which must be newest first. It
// returns ErrWindowChanged without writing when the generation moved.
func (c *HistoryCache) Fill(ctx context.Context, conversationID, generation int64, messages []*entity.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	if len(messages) > c.size {
		messages = messages[:c.size]
	}

	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message %d: %w", m.Id, err)
		}
		values = append(values, data)
	}

	key, genKey := historyKey(conversationID), generationKey(conversationID)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return ErrWindowChanged
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.RPush(ctx, key, values...)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, genKey)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrWindowChanged
	}
	return err
}

// Invalidate drops the window after a write. The next Recent reloads it from
// the database.
func (c *HistoryCache) Invalidate(ctx context.Context, conversationID int64) error {
	genKey := generationKey(conversationID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, c.ttl)
		pipe.Del(ctx, historyKey(conversationID))
		return nil
	})
	return err
}
