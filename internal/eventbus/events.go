// Package eventbus fans out named events to in-process subscribers and
// streams them to the frontend over Server-Sent Events.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Channel names used outside of watch notifications.
const (
	ChannelHeartbeat = "heartbeat"
	ChannelConnected = "connected"
)

// Event is one published payload.
type Event struct {
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
}

// newEvent encodes payload and stamps the event. A nil payload encodes as
// JSON null.
func newEvent(channel string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		Channel:   channel,
		Payload:   data,
		Timestamp: time.Now(),
	}, nil
}

// NewHeartbeatEvent creates a keep-alive event.
func NewHeartbeatEvent() Event {
	return Event{
		ID:        uuid.NewString(),
		Channel:   ChannelHeartbeat,
		Payload:   json.RawMessage("null"),
		Timestamp: time.Now(),
	}
}
