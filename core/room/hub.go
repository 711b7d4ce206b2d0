package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"TandemFM/cache"
	"TandemFM/logger"
	"TandemFM/model"
	"TandemFM/realtime"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// roomCapacity 每个房间最多两名成员
	roomCapacity = 2
)

// Client 房间 WebSocket 客户端
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	RoomID   string
	UserID   int64
	Username string
}

// SnapshotSink receives copies of relayed playback and view snapshots.
// Both the Redis room cache and the database-backed state store satisfy it.
type SnapshotSink interface {
	SavePlayback(ctx context.Context, roomID string, snap *model.PlaybackSnapshot) error
	SaveView(ctx context.Context, roomID string, snap *model.ViewSnapshot) error
}

// Hub relays realtime events between the two members of each room. Events
// are opaque to the hub except for playback and view snapshots, which it
// also writes to the room cache so a reconnecting member can recover.
type Hub struct {
	// 房间 -> 客户端集合
	rooms map[string]map[*Client]bool

	// 用户 -> 客户端（一个用户在一个房间只能有一个连接）
	userClients map[string]*Client

	register   chan *Client
	unregister chan *Client
	relay      chan *relayMessage

	roomCache *cache.RoomCache

	// States, when set, receives a durable copy of every snapshot the
	// cache gets, so the last room state survives a Redis flush.
	States SnapshotSink

	// OnActivity, when set, is called whenever a room sees traffic, e.g.
	// to bump its last-activity timestamp.
	OnActivity func(roomID string)

	mu   sync.RWMutex
	done chan struct{}
}

type relayMessage struct {
	roomID   string
	senderID int64
	data     []byte
}

// NewHub 创建房间 Hub
func NewHub(roomCache *cache.RoomCache) *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]bool),
		userClients: make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		relay:       make(chan *relayMessage, 256),
		roomCache:   roomCache,
		done:        make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.relay:
			h.relayToRoom(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	close(h.done)
}

// Register hands a connection to the hub. Returns false when the room
// already holds two other members; the caller should close the connection.
func (h *Hub) Register(client *Client) bool {
	h.mu.RLock()
	users := make(map[int64]bool)
	for c := range h.rooms[client.RoomID] {
		users[c.UserID] = true
	}
	h.mu.RUnlock()

	if len(users) >= roomCapacity && !users[client.UserID] {
		return false
	}

	h.register <- client
	return true
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()

	roomID := client.RoomID
	userKey := h.userKey(roomID, client.UserID)

	// 同一用户重连时踢掉旧连接
	if oldClient, exists := h.userClients[userKey]; exists {
		h.removeClient(oldClient)
	}

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	h.userClients[userKey] = client
	h.mu.Unlock()

	if h.roomCache != nil {
		ctx := context.Background()
		if err := h.roomCache.UpdatePresence(ctx, roomID, client.UserID); err != nil {
			logger.Warn("failed to update presence on register",
				logger.ErrorField(err),
				logger.String("room", roomID),
				logger.Int64("user", client.UserID))
		}
	}

	logger.Info("client joined room",
		logger.String("room", roomID),
		logger.Int64("user", client.UserID),
		logger.String("username", client.Username))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	h.removeClient(client)
	h.mu.Unlock()

	if h.roomCache != nil {
		ctx := context.Background()
		if err := h.roomCache.RemovePresence(ctx, client.RoomID, client.UserID); err != nil {
			logger.Warn("failed to remove presence on unregister",
				logger.ErrorField(err),
				logger.String("room", client.RoomID),
				logger.Int64("user", client.UserID))
		}
	}

	logger.Info("client left room",
		logger.String("room", client.RoomID),
		logger.Int64("user", client.UserID))
}

// removeClient 移除客户端（内部方法，需要持有锁）
func (h *Hub) removeClient(client *Client) {
	roomID := client.RoomID
	userKey := h.userKey(roomID, client.UserID)

	if _, ok := h.rooms[roomID]; ok {
		if _, ok := h.rooms[roomID][client]; ok {
			delete(h.rooms[roomID], client)
			close(client.Send)

			if len(h.rooms[roomID]) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	delete(h.userClients, userKey)
}

// relayToRoom forwards an event to every room member except its sender.
func (h *Hub) relayToRoom(msg *relayMessage) {
	h.mu.RLock()
	clients, ok := h.rooms[msg.roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		if client.UserID == msg.senderID {
			continue
		}
		select {
		case client.Send <- msg.data:
		default:
			// 发送缓冲区满，移除客户端
			h.unregister <- client
		}
	}
}

// handleEvent validates an inbound frame, snapshots playback and view
// events, and queues the frame for relay.
func (h *Hub) handleEvent(client *Client, data []byte) {
	var ev realtime.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warn("invalid room event",
			logger.ErrorField(err),
			logger.Int64("user", client.UserID))
		return
	}

	// 以连接身份为准，不信任帧内声明
	ev.RoomID = client.RoomID
	ev.SenderID = client.UserID
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	h.snapshotEvent(&ev)
	if h.OnActivity != nil {
		h.OnActivity(client.RoomID)
	}

	out, err := json.Marshal(&ev)
	if err != nil {
		return
	}
	h.relay <- &relayMessage{roomID: client.RoomID, senderID: client.UserID, data: out}
}

func (h *Hub) snapshotEvent(ev *realtime.Event) {
	ctx := context.Background()

	switch ev.Type {
	case realtime.EventPlayback:
		var snap model.PlaybackSnapshot
		if err := json.Unmarshal(ev.Payload, &snap); err != nil {
			return
		}
		if h.roomCache != nil {
			if err := h.roomCache.SavePlayback(ctx, ev.RoomID, &snap); err != nil {
				logger.Warn("failed to cache playback snapshot",
					logger.ErrorField(err),
					logger.String("room", ev.RoomID))
			}
		}
		if h.States != nil {
			if err := h.States.SavePlayback(ctx, ev.RoomID, &snap); err != nil {
				logger.Warn("failed to persist playback snapshot",
					logger.ErrorField(err),
					logger.String("room", ev.RoomID))
			}
		}
	case realtime.EventView:
		var snap model.ViewSnapshot
		if err := json.Unmarshal(ev.Payload, &snap); err != nil {
			return
		}
		if h.roomCache != nil {
			if err := h.roomCache.SaveView(ctx, ev.RoomID, &snap); err != nil {
				logger.Warn("failed to cache view snapshot",
					logger.ErrorField(err),
					logger.String("room", ev.RoomID))
			}
		}
		if h.States != nil {
			if err := h.States.SaveView(ctx, ev.RoomID, &snap); err != nil {
				logger.Warn("failed to persist view snapshot",
					logger.ErrorField(err),
					logger.String("room", ev.RoomID))
			}
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.rooms {
		for client := range clients {
			close(client.Send)
		}
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.userClients = make(map[string]*Client)
}

func (h *Hub) userKey(roomID string, userID int64) string {
	return fmt.Sprintf("%s:%d", roomID, userID)
}

// ReadPump 读取客户端消息
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.Int64("user", c.UserID))
			}
			return
		}
		c.Hub.handleEvent(c, message)
	}
}

// WritePump 向客户端写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
