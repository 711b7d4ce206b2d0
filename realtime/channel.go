package realtime

import (
	"context"
	"encoding/json"
)

// EventType partitions a room's event stream. Playback sync and chat are
// independent ordering domains even though they share the room channel.
type EventType string

const (
	EventPlayback EventType = "playback"
	EventChat     EventType = "chat"
	EventView     EventType = "view"
)

// Event is one published message on a room channel.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"roomId"`
	SenderID  int64           `json:"senderId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// Handler consumes inbound events. Handlers must tolerate duplicates and
// out-of-order delivery; the channel promises at-least-once at best.
type Handler func(ev Event)

// Subscription is a live attachment to a room channel. Close detaches the
// handler; it must be called on room leave or events keep arriving.
type Subscription interface {
	Close()
}

// Channel is the per-room publish/subscribe primitive consumed by the sync
// core. Implementations: MemoryChannel (in-process), RedisChannel (Redis
// Pub/Sub), WSChannel (relay server websocket).
type Channel interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, roomID string, typ EventType, h Handler) (Subscription, error)
}

// Marshal encodes a payload for an Event.
func Marshal(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
