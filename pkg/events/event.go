package events

import (
	"encoding/json"
	"time"
)

// Event is anything the chat service announces on the bus.
type Event interface {
	// EventType names the subject suffix, e.g. "CHAT_MESSAGE_CREATED".
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// BaseEvent is also the envelope written to the wire.
type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Encode renders any Event in the BaseEvent envelope, timestamp in UTC.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(BaseEvent{
		Type:       e.EventType(),
		Data:       e.Payload(),
		OccurredAt: e.Timestamp().UTC(),
	})
}
