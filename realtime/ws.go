package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TandemFM/logger"
	"TandemFM/model"

	"github.com/gorilla/websocket"
)

// WSChannel implements Channel over a websocket connection to a relay
// server's room endpoint. One WSChannel is bound to one room; the relay fans
// published events out to the other participant and never echoes them back
// to the sender, so handlers here only ever see partner events.
type WSChannel struct {
	roomID string
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu       sync.RWMutex
	handlers map[EventType]map[int]Handler
	nextID   int

	closeOnce sync.Once
	done      chan struct{}
}

// DialRoom connects to the relay's room endpoint, e.g.
// ws://host:8080/ws/rooms/{roomID}?token={jwt}.
func DialRoom(ctx context.Context, baseURL, token, roomID string) (*WSChannel, error) {
	url := fmt.Sprintf("%s/ws/rooms/%s?token=%s", baseURL, roomID, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrChannelSubscribeFailed, err)
	}

	c := &WSChannel{
		roomID:   roomID,
		conn:     conn,
		handlers: make(map[EventType]map[int]Handler),
		done:     make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

func (c *WSChannel) readPump() {
	defer c.Close()

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("websocket read error",
						logger.ErrorField(err),
						logger.String("room", c.roomID))
				}
			}
			return
		}

		c.mu.RLock()
		hs := make([]Handler, 0, len(c.handlers[ev.Type]))
		for _, h := range c.handlers[ev.Type] {
			hs = append(hs, h)
		}
		c.mu.RUnlock()

		for _, h := range hs {
			h(ev)
		}
	}
}

// Publish sends the event to the relay for fan-out.
func (c *WSChannel) Publish(ctx context.Context, ev Event) error {
	if ev.RoomID != c.roomID {
		return fmt.Errorf("event room %s does not match channel room %s", ev.RoomID, c.roomID)
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(ev)
}

// Subscribe registers a handler for one event type on the bound room.
func (c *WSChannel) Subscribe(ctx context.Context, roomID string, typ EventType, h Handler) (Subscription, error) {
	if roomID != c.roomID {
		return nil, fmt.Errorf("%w: channel bound to room %s", model.ErrChannelSubscribeFailed, c.roomID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handlers[typ] == nil {
		c.handlers[typ] = make(map[int]Handler)
	}
	c.nextID++
	id := c.nextID
	c.handlers[typ][id] = h
	return &wsSub{ch: c, typ: typ, id: id}, nil
}

// Close tears down the connection and all subscriptions.
func (c *WSChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	})
	return nil
}

type wsSub struct {
	ch  *WSChannel
	typ EventType
	id  int
}

// Close removes the handler; the connection stays up for other subscribers.
func (s *wsSub) Close() {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	delete(s.ch.handlers[s.typ], s.id)
}
