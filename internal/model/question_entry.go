package model

import "time"

type QuestionEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:64;not null;index:idx_question_scope" json:"user_id"`
	SubjectKey string    `gorm:"size:128;not null;index:idx_question_scope" json:"subject_key"`
	Question   string    `gorm:"type:text;not null" json:"question"`
	Answer     string    `gorm:"type:text" json:"answer"`
	AddedAt    time.Time `gorm:"not null" json:"added_at"`
}
