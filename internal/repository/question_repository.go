package repository

import (
	"fmt"

	"gorm.io/gorm"

	"studybuddy/internal/model"
)

type QuestionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) Create(entry *model.QuestionEntry) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("create question failed: %w", err)
	}
	return nil
}

// ListByScope returns entries in the order they were added.
func (r *QuestionRepository) ListByScope(userID, subjectKey string) ([]model.QuestionEntry, error) {
	var list []model.QuestionEntry
	if err := r.db.Where("user_id = ? AND subject_key = ?", userID, subjectKey).
		Order("added_at ASC").Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list questions failed: %w", err)
	}
	return list, nil
}

func (r *QuestionRepository) DeleteByID(userID, subjectKey string, id uint) error {
	if err := r.db.Where("id = ? AND user_id = ? AND subject_key = ?", id, userID, subjectKey).Delete(&model.QuestionEntry{}).Error; err != nil {
		return fmt.Errorf("delete question failed: %w", err)
	}
	return nil
}

func (r *QuestionRepository) DeleteByScope(userID, subjectKey string) error {
	if err := r.db.Where("user_id = ? AND subject_key = ?", userID, subjectKey).Delete(&model.QuestionEntry{}).Error; err != nil {
		return fmt.Errorf("delete questions by scope failed: %w", err)
	}
	return nil
}
