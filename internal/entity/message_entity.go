package entity

import "time"

type ChatMessage struct {
	Id             int64     `json:"id"`
	ConversationId int64     `json:"conversation_id"`
	SenderId       int64     `json:"sender_id"`
	Content        string    `json:"content"`
	MsgType        string    `json:"msg_type"`
	CreatedAt      time.Time `json:"created_at"`
}
