package repository

import (
	"fmt"

	"gorm.io/gorm"

	"studybuddy/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Replace stores doc and its pages, removing any document with the same
// origin name in the same scope first. Both steps share one transaction.
func (r *DocumentRepository) Replace(doc *model.StudyDocument) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteDocuments(tx, "user_id = ? AND subject_key = ? AND origin_name = ?", doc.UserID, doc.SubjectKey, doc.OriginName); err != nil {
			return err
		}
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("create document failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace document failed: %w", err)
	}
	return nil
}

// DeleteByOrigin reports whether a document was removed.
func (r *DocumentRepository) DeleteByOrigin(userID, subjectKey, originName string) (bool, error) {
	var removed bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&model.StudyDocument{}).
			Where("user_id = ? AND subject_key = ? AND origin_name = ?", userID, subjectKey, originName).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("list document ids failed: %w", err)
		}
		removed = len(ids) > 0
		return deleteByIDs(tx, ids)
	})
	if err != nil {
		return false, fmt.Errorf("delete document failed: %w", err)
	}
	return removed, nil
}

// DeleteByScope removes every document of a subject.
func (r *DocumentRepository) DeleteByScope(userID, subjectKey string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		return deleteDocuments(tx, "user_id = ? AND subject_key = ?", userID, subjectKey)
	})
	if err != nil {
		return fmt.Errorf("delete documents by scope failed: %w", err)
	}
	return nil
}

// ListByScope returns document metadata without pages, newest first.
func (r *DocumentRepository) ListByScope(userID, subjectKey string) ([]model.StudyDocument, error) {
	var list []model.StudyDocument
	if err := r.db.Where("user_id = ? AND subject_key = ?", userID, subjectKey).
		Order("uploaded_at DESC").Order("origin_name ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// ListAll loads every document with its pages in page order.
func (r *DocumentRepository) ListAll() ([]model.StudyDocument, error) {
	var list []model.StudyDocument
	err := r.db.
		Preload("Pages", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC").Order("id ASC") }).
		Order("user_id ASC").Order("subject_key ASC").Order("origin_name ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list all documents failed: %w", err)
	}
	return list, nil
}

func deleteDocuments(tx *gorm.DB, query string, args ...any) error {
	var ids []string
	if err := tx.Model(&model.StudyDocument{}).Where(query, args...).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("list document ids failed: %w", err)
	}
	return deleteByIDs(tx, ids)
}

func deleteByIDs(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("document_id IN ?", ids).Delete(&model.DocumentPage{}).Error; err != nil {
		return fmt.Errorf("delete document pages failed: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&model.StudyDocument{}).Error; err != nil {
		return fmt.Errorf("delete documents failed: %w", err)
	}
	return nil
}
