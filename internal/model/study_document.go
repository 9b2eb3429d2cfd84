package model

import "time"

// StudyDocument is a persisted upload. Origin names are unique per scope; a
// re-upload replaces the previous row and its pages.
type StudyDocument struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	UserID     string         `gorm:"size:64;not null;uniqueIndex:idx_document_scope_origin" json:"user_id"`
	SubjectKey string         `gorm:"size:128;not null;uniqueIndex:idx_document_scope_origin" json:"subject_key"`
	OriginName string         `gorm:"size:255;not null;uniqueIndex:idx_document_scope_origin" json:"origin_name"`
	FolderKind string         `gorm:"size:16;not null" json:"folder_kind"`
	UploadedAt time.Time      `gorm:"not null" json:"uploaded_at"`
	PageCount  int            `json:"page_count"`
	Size       int            `json:"size"`
	Pages      []DocumentPage `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"pages,omitempty"`
}

// DocumentPage holds the normalized text of one page. Number 0 means the
// source had no pages.
type DocumentPage struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	DocumentID string `gorm:"size:36;not null;index" json:"document_id"`
	Number     int    `gorm:"not null" json:"number"`
	Text       string `gorm:"type:longtext;not null" json:"text"`
}
