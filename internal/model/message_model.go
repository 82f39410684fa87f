package model

import "time"

const MessageTypeText = "text"

// Message is append-only: nothing in the chat path updates or deletes rows.
type Message struct {
	Id             int64     `gorm:"primaryKey;autoIncrement"`
	ConversationId int64     `gorm:"not null;index:idx_messages_conversation_created,priority:1"`
	SenderId       int64     `gorm:"not null;index"`
	Content        string    `gorm:"type:text;not null"`
	MsgType        string    `gorm:"type:varchar(16);not null;default:'text'"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_messages_conversation_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}
