package server

import (
	"encoding/json"
	"net/http"
	"time"

	"TandemFM/logger"
	"TandemFM/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxUploadSize = 100 << 20 // 100 MB

// GetTracksHandler returns the caller's own track collection.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tracks, err := h.trackRepo.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Error("failed to list tracks", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load tracks")
		return
	}
	if tracks == nil {
		tracks = []model.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// GetPartnerTracksHandler returns the collection of the room's other member,
// used by the playlist merge on room join.
func (h *APIHandler) GetPartnerTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	roomID := mux.Vars(r)["id"]
	if _, ok := h.requireMember(r.Context(), w, roomID, userID); !ok {
		return
	}

	tracks, err := h.trackRepo.ListRoomPartnerTracks(r.Context(), roomID, userID)
	if err != nil {
		logger.Error("failed to list partner tracks",
			logger.ErrorField(err),
			logger.String("room", roomID))
		writeError(w, http.StatusInternalServerError, "Failed to load partner tracks")
		return
	}
	if tracks == nil {
		tracks = []model.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// UploadTrackHandler accepts a multipart audio upload, stores the file in
// object storage and records the track.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	object, err := h.media.PutAudio(r.Context(), userID, header.Filename, file, header.Size, contentType)
	if err != nil {
		logger.Error("failed to store audio",
			logger.ErrorField(err),
			logger.Int64("user", userID))
		writeError(w, http.StatusInternalServerError, "Failed to store audio")
		return
	}

	track := &model.Track{
		ID:      uuid.New().String(),
		UserID:  userID,
		Title:   title,
		Artist:  r.FormValue("artist"),
		Src:     "/media/" + object,
		AddedAt: time.Now().UnixMilli(),
	}
	if err := h.trackRepo.Create(r.Context(), track); err != nil {
		logger.Error("failed to record track", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to record track")
		return
	}

	logger.Info("track uploaded",
		logger.String("track", track.ID),
		logger.String("title", track.Title),
		logger.Int64("user", userID))
	writeJSON(w, http.StatusCreated, track)
}

// UploadCoverHandler stores cover art for one of the caller's tracks.
func (h *APIHandler) UploadCoverHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, "cover file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	object, err := h.media.PutCover(r.Context(), userID, header.Filename, file, header.Size, contentType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store cover")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"coverUrl": "/media/" + object})
}

// SetFavoriteHandler toggles a track's favorite flag.
func (h *APIHandler) SetFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Favorite bool `json:"favorite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	trackID := mux.Vars(r)["id"]
	if err := h.trackRepo.SetFavorite(r.Context(), trackID, userID, req.Favorite); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update track")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTrackHandler removes one of the caller's tracks.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	trackID := mux.Vars(r)["id"]
	if err := h.trackRepo.Delete(r.Context(), trackID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
