package events

import "time"

const TypeChatMessageCreated = "CHAT_MESSAGE_CREATED"

// ChatMessageCreated is emitted once a routed message has been stored.
func ChatMessageCreated(id, conversationID, senderID int64, createdAt time.Time) BaseEvent {
	return BaseEvent{
		Type: TypeChatMessageCreated,
		Data: map[string]interface{}{
			"message_id":      id,
			"conversation_id": conversationID,
			"sender_id":       senderID,
			"created_at":      createdAt.UTC().Format(time.RFC3339Nano),
		},
		OccurredAt: time.Now(),
	}
}
