package service

import (
	"context"
	"errors"
	"fmt"

	"notechat-be/internal/entity"
	"notechat-be/internal/model"
	"notechat-be/internal/pkg/logger"
	"notechat-be/internal/repository/cache"
	"notechat-be/internal/repository/contract"
	"notechat-be/internal/repository/specification"
	"notechat-be/pkg/events"
)

// EventPublisher is satisfied by pkg/nats.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// MessageService is the durable message store behind the chat hub.
// Cache and publisher are optional; both degrade to log-and-continue.
type MessageService struct {
	repo      contract.ChatMessageRepository
	cache     *cache.HistoryCache
	publisher EventPublisher
	logger    logger.ILogger
}

type MessageServiceOption func(*MessageService)

func WithHistoryCache(c *cache.HistoryCache) MessageServiceOption {
	return func(s *MessageService) { s.cache = c }
}

func WithEventPublisher(p EventPublisher) MessageServiceOption {
	return func(s *MessageService) { s.publisher = p }
}

func NewMessageService(repo contract.ChatMessageRepository, log logger.ILogger, opts ...MessageServiceOption) *MessageService {
	s := &MessageService{repo: repo, logger: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save appends a text message to the conversation history.
func (s *MessageService) Save(ctx context.Context, senderID, conversationID int64, content string) error {
	msg := &entity.ChatMessage{
		ConversationId: conversationID,
		SenderId:       senderID,
		Content:        content,
		MsgType:        model.MessageTypeText,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return fmt.Errorf("save message for conversation %d: %w", conversationID, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, conversationID); err != nil {
			s.logger.Warn("MessageService", "Failed to invalidate history cache", map[string]interface{}{
				"conversation_id": conversationID,
				"error":           err.Error(),
			})
		}
	}

	if s.publisher != nil {
		evt := events.ChatMessageCreated(msg.Id, msg.ConversationId, msg.SenderId, msg.CreatedAt)
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("MessageService", "Failed to publish message event", map[string]interface{}{
				"message_id": msg.Id,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

// Recent returns at most limit messages of a conversation, newest first.
func (s *MessageService) Recent(ctx context.Context, conversationID int64, limit int) ([]*entity.ChatMessage, error) {
	generation, fill := int64(0), false
	if s.cache != nil {
		cached, ok, err := s.cache.Recent(ctx, conversationID, limit)
		switch {
		case err != nil:
			s.logger.Warn("MessageService", "History cache read failed, using database", map[string]interface{}{
				"conversation_id": conversationID,
				"error":           err.Error(),
			})
		case ok:
			return cached, nil
		default:
			generation, err = s.cache.Generation(ctx, conversationID)
			fill = err == nil
		}
	}

	messages, err := s.repo.FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationID},
		specification.RecentFirst{},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, fmt.Errorf("load history for conversation %d: %w", conversationID, err)
	}

	if fill {
		err := s.cache.Fill(ctx, conversationID, generation, messages)
		if err != nil && !errors.Is(err, cache.ErrWindowChanged) {
			s.logger.Warn("MessageService", "Failed to fill history cache", map[string]interface{}{
				"conversation_id": conversationID,
				"error":           err.Error(),
			})
		}
	}
	return messages, nil
}
