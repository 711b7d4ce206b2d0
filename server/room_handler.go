package server

import (
	"context"
	"encoding/json"
	"net/http"

	"TandemFM/logger"
	"TandemFM/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// CreateConnectionRequest represents a pairing request. With a partner email
// the room is paired immediately; without one an open room is created and the
// partner joins later by room ID.
type CreateConnectionRequest struct {
	PartnerEmail string `json:"partnerEmail"`
}

// CreateConnectionHandler pairs the caller with another user by email. If an
// active room between the two already exists it is returned instead of
// creating a duplicate. An empty partner email creates an open room the
// invitee can join by ID.
func (h *APIHandler) CreateConnectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.PartnerEmail == "" {
		rm := &model.Room{ID: uuid.New().String(), OwnerID: userID}
		if err := h.roomRepo.Create(r.Context(), rm); err != nil {
			logger.Error("failed to create room",
				logger.ErrorField(err),
				logger.Int64("owner", userID))
			writeError(w, http.StatusInternalServerError, "Failed to create connection")
			return
		}
		logger.Info("open connection created",
			logger.String("room", rm.ID),
			logger.Int64("owner", userID))
		writeJSON(w, http.StatusCreated, model.RoomInfo{Room: *rm})
		return
	}

	partner, err := h.userRepo.GetByEmail(r.Context(), req.PartnerEmail)
	if err != nil {
		logger.Error("failed to look up partner", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if partner == nil {
		writeError(w, http.StatusNotFound, "No user with that email")
		return
	}
	if partner.ID == userID {
		writeError(w, http.StatusBadRequest, "Cannot connect to yourself")
		return
	}

	existing, err := h.roomRepo.FindActiveBetween(r.Context(), userID, partner.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusOK, model.RoomInfo{Room: *existing, PartnerName: partner.Username})
		return
	}

	rm := &model.Room{
		ID:        uuid.New().String(),
		OwnerID:   userID,
		PartnerID: &partner.ID,
	}
	if err := h.roomRepo.Create(r.Context(), rm); err != nil {
		logger.Error("failed to create room",
			logger.ErrorField(err),
			logger.Int64("owner", userID))
		writeError(w, http.StatusInternalServerError, "Failed to create connection")
		return
	}

	logger.Info("connection created",
		logger.String("room", rm.ID),
		logger.Int64("owner", userID),
		logger.Int64("partner", partner.ID))
	writeJSON(w, http.StatusCreated, model.RoomInfo{Room: *rm, PartnerName: partner.Username})
}

// ListConnectionsHandler returns the caller's active rooms with partner
// names resolved.
func (h *APIHandler) ListConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	rooms, err := h.roomRepo.ListActiveForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	infos := make([]model.RoomInfo, 0, len(rooms))
	for _, rm := range rooms {
		info := model.RoomInfo{Room: rm}
		partnerID := rm.OwnerID
		if partnerID == userID && rm.PartnerID != nil {
			partnerID = *rm.PartnerID
		}
		if partnerID != userID {
			if partner, err := h.userRepo.GetByID(r.Context(), partnerID); err == nil && partner != nil {
				info.PartnerName = partner.Username
			}
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

// JoinConnectionHandler claims the free seat of an open room. Rejoining a
// room the caller already holds the seat of is a no-op.
func (h *APIHandler) JoinConnectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
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
	if rm.OwnerID == userID {
		writeError(w, http.StatusBadRequest, "Cannot join your own room")
		return
	}

	switch {
	case rm.PartnerID == nil:
		if err := h.roomRepo.SetPartner(r.Context(), roomID, userID); err != nil {
			logger.Error("failed to set room partner",
				logger.ErrorField(err),
				logger.String("room", roomID))
			writeError(w, http.StatusInternalServerError, "Failed to join connection")
			return
		}
		rm.PartnerID = &userID
	case *rm.PartnerID != userID:
		writeError(w, http.StatusForbidden, "Room already has a partner")
		return
	}

	info := model.RoomInfo{Room: *rm}
	if owner, err := h.userRepo.GetByID(r.Context(), rm.OwnerID); err == nil && owner != nil {
		info.PartnerName = owner.Username
	}

	logger.Info("connection joined",
		logger.String("room", roomID),
		logger.Int64("partner", userID))
	writeJSON(w, http.StatusOK, info)
}

// CloseConnectionHandler closes a room and clears its cached state.
func (h *APIHandler) CloseConnectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	roomID := mux.Vars(r)["id"]
	if _, ok := h.requireMember(r.Context(), w, roomID, userID); !ok {
		return
	}

	if err := h.roomRepo.Close(r.Context(), roomID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to close connection")
		return
	}
	if h.roomCache != nil {
		if err := h.roomCache.ClearRoom(r.Context(), roomID); err != nil {
			logger.Warn("failed to clear room cache",
				logger.ErrorField(err),
				logger.String("room", roomID))
		}
	}
	if h.states != nil {
		if err := h.states.DeleteByRoom(r.Context(), roomID); err != nil {
			logger.Warn("failed to drop stored room state",
				logger.ErrorField(err),
				logger.String("room", roomID))
		}
	}

	logger.Info("connection closed", logger.String("room", roomID))
	w.WriteHeader(http.StatusNoContent)
}

// GetMessagesHandler returns a room's chat history.
func (h *APIHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	roomID := mux.Vars(r)["id"]
	if _, ok := h.requireMember(r.Context(), w, roomID, userID); !ok {
		return
	}

	recs, err := h.chatRepo.ListByRoom(r.Context(), roomID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// ClearMessagesHandler destroys a room's chat history. Irreversible.
func (h *APIHandler) ClearMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	roomID := mux.Vars(r)["id"]
	if _, ok := h.requireMember(r.Context(), w, roomID, userID); !ok {
		return
	}

	if err := h.chatRepo.DeleteByRoom(r.Context(), roomID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear messages")
		return
	}

	logger.Info("chat history cleared", logger.String("room", roomID))
	w.WriteHeader(http.StatusNoContent)
}

// GetRoomStateHandler returns the room's last playback and view snapshots
// plus partner presence so a reconnecting client can recover. Snapshots are
// read from the cache first, then from the durable state store when the
// cache has nothing (expired TTL, Redis flush).
func (h *APIHandler) GetRoomStateHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	roomID := mux.Vars(r)["id"]
	rm, ok := h.requireMember(r.Context(), w, roomID, userID)
	if !ok {
		return
	}

	var resp struct {
		Playback      *model.PlaybackSnapshot `json:"playback,omitempty"`
		View          *model.ViewSnapshot     `json:"view,omitempty"`
		Online        []int64                 `json:"online"`
		PartnerOnline bool                    `json:"partnerOnline"`
	}
	if h.roomCache != nil {
		resp.Playback, _ = h.roomCache.LoadPlayback(r.Context(), roomID)
		resp.View, _ = h.roomCache.LoadView(r.Context(), roomID)
		resp.Online, _ = h.roomCache.OnlineUsers(r.Context(), roomID)

		partnerID := rm.OwnerID
		if partnerID == userID && rm.PartnerID != nil {
			partnerID = *rm.PartnerID
		}
		if partnerID != userID {
			resp.PartnerOnline, _ = h.roomCache.IsUserOnline(r.Context(), roomID, partnerID)
		}
	}
	if h.states != nil {
		if resp.Playback == nil {
			resp.Playback, _ = h.states.LoadPlayback(r.Context(), roomID)
		}
		if resp.View == nil {
			resp.View, _ = h.states.LoadView(r.Context(), roomID)
		}
	}
	if resp.Online == nil {
		resp.Online = []int64{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireMember loads a room and verifies the caller belongs to it, writing
// the error response itself on failure.
func (h *APIHandler) requireMember(ctx context.Context, w http.ResponseWriter, roomID string, userID int64) (*model.Room, bool) {
	rm, err := h.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if rm == nil {
		writeError(w, http.StatusNotFound, "Room not found")
		return nil, false
	}
	if rm.OwnerID != userID && (rm.PartnerID == nil || *rm.PartnerID != userID) {
		writeError(w, http.StatusForbidden, "Not a member of this room")
		return nil, false
	}
	return rm, true
}
