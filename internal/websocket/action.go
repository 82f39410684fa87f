package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	ActionJoin = "join"
	ActionMsg  = "msg"
)

var ErrInvalidFrame = errors.New("invalid frame")

// Action is one decoded inbound frame: either JoinAction or SendAction.
type Action interface {
	isAction()
}

type JoinAction struct {
	ConversationID int64
}

type SendAction struct {
	ConversationID int64
	Content        string
}

func (JoinAction) isAction() {}
func (SendAction) isAction() {}

// Pointer fields tell a missing key apart from a zero value.
type inboundFrame struct {
	Action         string  `validate:"required,oneof=join msg"`
	ConversationID *int64  `validate:"required"`
	Msg            *string `validate:"required_if=Action msg"`
}

var frameValidator = validator.New()

// DecodeAction parses a text frame. Anything that is not a well-formed join
// or msg frame yields ErrInvalidFrame.
func DecodeAction(data []byte) (Action, error) {
	f, err := decodeFrame(data)
	if err != nil {
		return nil, errors.Join(ErrInvalidFrame, err)
	}
	if err := frameValidator.Struct(f); err != nil {
		return nil, errors.Join(ErrInvalidFrame, err)
	}

	switch f.Action {
	case ActionJoin:
		return JoinAction{ConversationID: *f.ConversationID}, nil
	default:
		return SendAction{ConversationID: *f.ConversationID, Content: *f.Msg}, nil
	}
}

// decodeFrame matches keys exactly. encoding/json struct tags would also
// accept "ACTION" or "Conversation_ID".
func decodeFrame(data []byte) (inboundFrame, error) {
	var f inboundFrame
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return f, err
	}

	for key, dst := range map[string]interface{}{
		"action":          &f.Action,
		"conversation_id": &f.ConversationID,
		"msg":             &f.Msg,
	} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return f, fmt.Errorf("field %q: %w", key, err)
		}
	}
	return f, nil
}
