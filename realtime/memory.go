package realtime

import (
	"context"
	"sync"
	"time"
)

// MemoryChannel is an in-process Channel. Both participants of a room must
// share the same instance, which makes it the natural backend for tests and
// single-node setups. Delivery is synchronous and includes the publisher's
// own subscriptions; consumers filter by SenderID.
type MemoryChannel struct {
	mu   sync.RWMutex
	subs map[string][]*memorySub
	next int
}

type memorySub struct {
	ch      *MemoryChannel
	key     string
	id      int
	handler Handler
}

// NewMemoryChannel creates an empty in-process channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: make(map[string][]*memorySub)}
}

func subKey(roomID string, typ EventType) string {
	return roomID + ":" + string(typ)
}

// Publish delivers the event to every current subscriber of the room/type.
func (c *MemoryChannel) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	c.mu.RLock()
	subs := append([]*memorySub(nil), c.subs[subKey(ev.RoomID, ev.Type)]...)
	c.mu.RUnlock()

	for _, s := range subs {
		s.handler(ev)
	}
	return nil
}

// Subscribe attaches a handler for one room and event type.
func (c *MemoryChannel) Subscribe(ctx context.Context, roomID string, typ EventType, h Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := subKey(roomID, typ)
	c.next++
	s := &memorySub{ch: c, key: key, id: c.next, handler: h}
	c.subs[key] = append(c.subs[key], s)
	return s, nil
}

// Close detaches the subscription.
func (s *memorySub) Close() {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()

	subs := s.ch.subs[s.key]
	for i, other := range subs {
		if other.id == s.id {
			s.ch.subs[s.key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
