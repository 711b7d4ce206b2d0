package server

import (
	"net/http"

	"TandemFM/core/auth"
	"TandemFM/core/room"
	"TandemFM/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 浏览器客户端跨域连接
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RoomWSHandler upgrades a member connection and attaches it to the relay
// hub. The token rides the query string because browser WebSocket clients
// cannot set headers.
func (h *APIHandler) RoomWSHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "token is required")
		return
	}

	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	roomID := mux.Vars(r)["id"]
	rm, err := h.roomRepo.GetByID(r.Context(), roomID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if rm == nil || !rm.Active {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	if rm.OwnerID != claims.UserID && (rm.PartnerID == nil || *rm.PartnerID != claims.UserID) {
		writeError(w, http.StatusForbidden, "Not a member of this room")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &room.Client{
		Hub:      h.hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		RoomID:   roomID,
		UserID:   claims.UserID,
		Username: claims.Username,
	}

	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "room is full"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
