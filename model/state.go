package model

import "time"

// NoTrack is the sentinel index meaning no track is selected.
const NoTrack = -1

// PlaybackState is one client's local playback state. CurrentTrackIndex
// indexes the client's own ordered track sequence and is NoTrack when nothing
// is selected; it is never out of range otherwise.
type PlaybackState struct {
	IsPlaying         bool    `json:"isPlaying"`
	CurrentTime       float64 `json:"currentTime"` // Seconds into the current track
	Duration          float64 `json:"duration"`    // Seconds, taken from the current track once known
	Volume            float64 `json:"volume"`      // 0.0–1.0
	IsMuted           bool    `json:"isMuted"`
	IsShuffled        bool    `json:"isShuffled"`
	IsRepeating       bool    `json:"isRepeating"`
	CurrentTrackIndex int     `json:"currentTrackIndex"`
}

// SyncState describes a client's room membership.
// Invariants: IsSyncing implies IsConnected; RoomID is non-empty iff IsConnected.
type SyncState struct {
	IsConnected   bool   `json:"isConnected"`
	PartnerOnline bool   `json:"partnerOnline"` // Best-effort presence cue, not a liveness guarantee
	RoomID        string `json:"roomId,omitempty"`
	IsSyncing     bool   `json:"isSyncing"`
	LastSyncTime  int64  `json:"lastSyncTime,omitempty"` // Unix milliseconds of the last outbound publish
}

// StateRecord is the persisted last-known room state, keyed by room.
// Upserted on every outbound publish so a reconnecting client can recover.
type StateRecord struct {
	RoomID    string    `json:"roomId" gorm:"primaryKey;size:36"`
	Kind      string    `json:"kind" gorm:"primaryKey;size:16"` // playback, view
	Payload   []byte    `json:"payload" gorm:"type:json"`
	UpdatedBy int64     `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (StateRecord) TableName() string {
	return "room_states"
}

const (
	StateKindPlayback = "playback"
	StateKindView     = "view"
)
