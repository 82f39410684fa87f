package mapper

import (
	"notechat-be/internal/entity"
	"notechat-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) MessageToEntity(msg *model.Message) *entity.ChatMessage {
	if msg == nil {
		return nil
	}
	return &entity.ChatMessage{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Content:        msg.Content,
		MsgType:        msg.MsgType,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.ChatMessage) *model.Message {
	if msg == nil {
		return nil
	}
	msgType := msg.MsgType
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Content:        msg.Content,
		MsgType:        msgType,
		CreatedAt:      msg.CreatedAt,
	}
}
