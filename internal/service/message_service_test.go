package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"notechat-be/internal/entity"
	"notechat-be/internal/pkg/logger"
	"notechat-be/internal/repository/cache"
	"notechat-be/internal/repository/contract"
	"notechat-be/internal/repository/specification"
	"notechat-be/pkg/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryMessageRepo understands exactly the specifications MessageService uses.
type memoryMessageRepo struct {
	mu        sync.Mutex
	rows      []*entity.ChatMessage
	findCalls int
	createErr error
}

func (r *memoryMessageRepo) Create(_ context.Context, m *entity.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	m.Id = int64(len(r.rows) + 1)
	m.CreatedAt = time.Now()
	cp := *m
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memoryMessageRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++

	var conversationID int64
	limit := len(r.rows)
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByConversationID:
			conversationID = s.ConversationID
		case specification.Pagination:
			limit = s.Limit
		}
	}

	var out []*entity.ChatMessage
	for _, m := range r.rows {
		if m.ConversationId == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id > out[j].Id })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// snapshotRepo runs interleave after taking the FindAll snapshot and before
// returning it, like a write committing while the history query is in flight.
type snapshotRepo struct {
	*memoryMessageRepo
	interleave func()
}

func (r *snapshotRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	rows, err := r.memoryMessageRepo.FindAll(ctx, specs...)
	if r.interleave != nil {
		run := r.interleave
		r.interleave = nil
		run()
	}
	return rows, err
}

func newCachedService(t *testing.T, repo contract.ChatMessageRepository) (*MessageService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewMessageService(repo, logger.NewNopLogger(), WithHistoryCache(cache.NewHistoryCache(rdb, 20, time.Minute))), mr
}

func contents(msgs []*entity.ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func TestMessageServiceSaveStoresTextMessage(t *testing.T) {
	repo := &memoryMessageRepo{}
	pub := &recordingPublisher{}
	svc := NewMessageService(repo, logger.NewNopLogger(), WithEventPublisher(pub))

	require.NoError(t, svc.Save(context.Background(), 1, 5, "hi"))

	require.Len(t, repo.rows, 1)
	row := repo.rows[0]
	assert.Equal(t, int64(5), row.ConversationId)
	assert.Equal(t, int64(1), row.SenderId)
	assert.Equal(t, "hi", row.Content)
	assert.Equal(t, "text", row.MsgType)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeChatMessageCreated, pub.events[0].EventType())
	assert.Equal(t, int64(1), pub.events[0].Payload()["message_id"])
}

func TestMessageServiceSaveFailureSkipsEvent(t *testing.T) {
	repo := &memoryMessageRepo{createErr: errors.New("db down")}
	pub := &recordingPublisher{}
	svc := NewMessageService(repo, logger.NewNopLogger(), WithEventPublisher(pub))

	err := svc.Save(context.Background(), 1, 5, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, pub.events)
}

func TestMessageServicePublishFailureIsNotAnError(t *testing.T) {
	repo := &memoryMessageRepo{}
	pub := &recordingPublisher{err: errors.New("nats gone")}
	svc := NewMessageService(repo, logger.NewNopLogger(), WithEventPublisher(pub))

	assert.NoError(t, svc.Save(context.Background(), 1, 5, "hi"))
	assert.Len(t, repo.rows, 1)
}

func TestMessageServiceRecentWithoutCache(t *testing.T) {
	repo := &memoryMessageRepo{}
	svc := NewMessageService(repo, logger.NewNopLogger())
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Save(ctx, 1, 5, c))
	}

	msgs, err := svc.Recent(ctx, 5, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "c", msgs[0].Content)
	assert.Equal(t, "b", msgs[1].Content)
}

func TestMessageServiceRecentUsesCache(t *testing.T) {
	repo := &memoryMessageRepo{}
	svc, _ := newCachedService(t, repo)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, 1, 5, "a"))

	first, err := svc.Recent(ctx, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, contents(first))
	assert.Equal(t, 1, repo.findCalls)

	again, err := svc.Recent(ctx, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, contents(again))
	assert.Equal(t, 1, repo.findCalls, "warm window should not hit the database")

	require.NoError(t, svc.Save(ctx, 2, 5, "b"))

	second, err := svc.Recent(ctx, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.findCalls, "a write drops the window")
	require.Len(t, second, 2)
	assert.Equal(t, "b", second[0].Content)
	assert.Equal(t, int64(2), second[0].SenderId)
}

func TestMessageServiceSaveDuringColdLoadIsNotLost(t *testing.T) {
	repo := &snapshotRepo{memoryMessageRepo: &memoryMessageRepo{}}
	svc, mr := newCachedService(t, repo)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, 1, 5, "a"))

	repo.interleave = func() { require.NoError(t, svc.Save(ctx, 2, 5, "b")) }
	stale, err := svc.Recent(ctx, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, contents(stale))
	assert.False(t, mr.Exists("chat:history:5"), "snapshot older than the write must not be cached")

	require.NoError(t, svc.Save(ctx, 3, 5, "c"))

	for i := 0; i < 2; i++ {
		msgs, err := svc.Recent(ctx, 5, 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, contents(msgs))
	}
}

func TestMessageServiceCachedOrderFollowsDatabase(t *testing.T) {
	repo := &memoryMessageRepo{}
	svc, _ := newCachedService(t, repo)
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Save(ctx, 1, 5, c))
	}
	fromDB, err := svc.Recent(ctx, 5, 20)
	require.NoError(t, err)

	fromCache, err := svc.Recent(ctx, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.findCalls)
	assert.Equal(t, contents(fromDB), contents(fromCache))
	assert.Equal(t, []string{"c", "b", "a"}, contents(fromCache))
}

func TestMessageServiceRecentFallsBackWhenCacheDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := &memoryMessageRepo{}
	svc := NewMessageService(repo, logger.NewNopLogger(), WithHistoryCache(cache.NewHistoryCache(rdb, 20, time.Minute)))
	ctx := context.Background()
	require.NoError(t, svc.Save(ctx, 1, 5, "a"))

	mr.Close()

	msgs, err := svc.Recent(ctx, 5, 20)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].Content)
}
