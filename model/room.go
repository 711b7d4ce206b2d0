package model

import "time"

// Room pairs exactly two participants for playback and chat sync.
type Room struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	OwnerID      int64      `json:"ownerId" gorm:"index;not null"`
	PartnerID    *int64     `json:"partnerId,omitempty" gorm:"index"`
	Active       bool       `json:"active" gorm:"default:true;index"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity time.Time  `json:"lastActivity"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
}

// TableName 指定表名
func (Room) TableName() string {
	return "rooms"
}

// RoomInfo is the API view of a room, resolved against the requesting user.
type RoomInfo struct {
	Room
	PartnerName string `json:"partnerName,omitempty"`
}

// ========== 非持久化结构（用于 Redis 和 WebSocket） ==========

// PlaybackSnapshot is the full-state payload published to a room channel.
// Snapshots are not sequence-numbered; Timestamp is informational only and
// conflicts are resolved by the reconciliation policy, not by ordering.
type PlaybackSnapshot struct {
	RoomID    string        `json:"roomId"`
	SenderID  int64         `json:"senderId"`
	State     PlaybackState `json:"state"`
	TrackID   string        `json:"trackId,omitempty"` // Identity of the selected track, if any
	Timestamp int64         `json:"timestamp"`         // Unix milliseconds, wall clock
}

// ViewState is the room-scoped shared presentation state.
type ViewState struct {
	IsFullscreenBackground bool `json:"isFullscreenBackground"`
}

// ViewSnapshot carries a ViewState change over the room channel.
type ViewSnapshot struct {
	RoomID    string    `json:"roomId"`
	SenderID  int64     `json:"senderId"`
	State     ViewState `json:"state"`
	Timestamp int64     `json:"timestamp"`
}
