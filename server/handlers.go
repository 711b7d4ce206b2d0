package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"TandemFM/cache"
	"TandemFM/config"
	"TandemFM/core/room"
	"TandemFM/repository"
	"TandemFM/storage"
)

type contextKey string

const (
	ctxKeyUserID   contextKey = "userID"
	ctxKeyUsername contextKey = "username"
)

// APIHandler carries the dependencies shared by all HTTP handlers.
type APIHandler struct {
	cfg       *config.Config
	userRepo  repository.UserRepository
	trackRepo repository.TrackRepository
	roomRepo  repository.RoomRepository
	chatRepo  repository.ChatRepository
	states    *repository.StateStore
	roomCache *cache.RoomCache
	media     *storage.MediaStore
	hub       *room.Hub
}

// NewAPIHandler wires the handler set.
func NewAPIHandler(
	cfg *config.Config,
	userRepo repository.UserRepository,
	trackRepo repository.TrackRepository,
	roomRepo repository.RoomRepository,
	chatRepo repository.ChatRepository,
	states *repository.StateStore,
	roomCache *cache.RoomCache,
	media *storage.MediaStore,
	hub *room.Hub,
) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		userRepo:  userRepo,
		trackRepo: trackRepo,
		roomRepo:  roomRepo,
		chatRepo:  chatRepo,
		states:    states,
		roomCache: roomCache,
		media:     media,
		hub:       hub,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GetUserIDFromContext extracts the user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(ctxKeyUserID).(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetUsernameFromContext extracts the username from the request context.
func GetUsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(ctxKeyUsername).(string)
	if !ok {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}
