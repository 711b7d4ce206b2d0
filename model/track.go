package model

import "time"

// Track represents one audio track in a user's library. Tracks copied from a
// partner's library during a room merge become independent rows owned by the
// copying user; only the ID links them for dedup.
type Track struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    int64     `json:"userId" gorm:"index;not null"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Artist    string    `json:"artist" gorm:"size:255"`
	Duration  float64   `json:"duration"`             // Duration in seconds
	Src       string    `json:"src" gorm:"size:1024"` // Source locator, may be a MinIO object URL or a local path
	CoverURL  string    `json:"coverUrl,omitempty" gorm:"size:1024"`
	Favorite  bool      `json:"favorite"`
	AddedAt   int64     `json:"addedAt" gorm:"index"` // Unix milliseconds, preserved across merges for sort order
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}
