package model

import "time"

// Subject is a user's course. Key is the normalized name and, together with
// UserID, forms the retrieval scope.
type Subject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_subject_user_key" json:"user_id"`
	Key       string    `gorm:"column:subject_key;size:128;not null;uniqueIndex:idx_subject_user_key" json:"key"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Game      string    `gorm:"size:128" json:"game"` // "" = default game
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile tracks per-user state across sessions.
type Profile struct {
	UserID        string    `gorm:"primaryKey;size:64" json:"user_id"`
	ActiveSubject string    `gorm:"size:128" json:"active_subject"`
	UpdatedAt     time.Time `json:"updated_at"`
}
