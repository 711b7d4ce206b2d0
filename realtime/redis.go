package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TandemFM/logger"
	"TandemFM/model"

	"github.com/redis/go-redis/v9"
)

const roomEventsKey = "room:%s:events:%s" // roomID, event type

// RedisChannel implements Channel over Redis Pub/Sub. Each room/type pair
// maps to one Redis channel; delivery is fire-and-forget, which matches the
// at-least-once, no-guarantee contract the sync core is written against.
type RedisChannel struct {
	client *redis.Client
}

// NewRedisChannel wraps an existing Redis client. The client is injected so
// its lifecycle stays with the caller.
func NewRedisChannel(client *redis.Client) *RedisChannel {
	return &RedisChannel{client: client}
}

// Publish sends the event to the room's Redis channel.
func (c *RedisChannel) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := fmt.Sprintf(roomEventsKey, ev.RoomID, ev.Type)
	return c.client.Publish(ctx, key, data).Err()
}

// Subscribe attaches a handler for one room and event type. The returned
// subscription owns a goroutine that lives until Close.
func (c *RedisChannel) Subscribe(ctx context.Context, roomID string, typ EventType, h Handler) (Subscription, error) {
	key := fmt.Sprintf(roomEventsKey, roomID, typ)
	pubsub := c.client.Subscribe(ctx, key)

	// Confirm the subscription before handing it out.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrChannelSubscribeFailed, err)
	}

	sub := &redisSub{pubsub: pubsub}
	go func() {
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("invalid event payload",
					logger.ErrorField(err),
					logger.String("room", roomID),
					logger.String("type", string(typ)))
				continue
			}
			h(ev)
		}
	}()
	return sub, nil
}

type redisSub struct {
	pubsub *redis.PubSub
}

// Close detaches the subscription and stops its dispatch goroutine.
func (s *redisSub) Close() {
	s.pubsub.Close()
}
