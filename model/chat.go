package model

import "time"

// Sender tags are client-relative: the same message is "me" on its author's
// side and "partner" on the recipient's side.
const (
	SenderMe      = "me"
	SenderPartner = "partner"
	SenderSystem  = "system"
)

// ChatMessage is a client's view of one message. Append-only: messages are
// created and (on clear) bulk-destroyed, never mutated.
type ChatMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"` // me, partner, system
	Timestamp int64  `json:"timestamp"`
	RoomID    string `json:"roomId,omitempty"`
}

// ChatRecord is the persisted form of a message, sender kept as an absolute
// user identity and resolved to a relative tag when read back.
type ChatRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	RoomID    string    `json:"roomId" gorm:"size:36;index;not null"`
	SenderID  int64     `json:"senderId" gorm:"not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

// TableName 指定表名
func (ChatRecord) TableName() string {
	return "chat_messages"
}

// ChatPayload carries a message over the room channel.
type ChatPayload struct {
	ID       string `json:"id"`
	RoomID   string `json:"roomId"`
	SenderID int64  `json:"senderId"`
	Text     string `json:"text"`
}
