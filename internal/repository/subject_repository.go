package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studybuddy/internal/model"
)

type SubjectRepository struct {
	db *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) Create(subject *model.Subject) error {
	if err := r.db.Create(subject).Error; err != nil {
		return fmt.Errorf("create subject failed: %w", err)
	}
	return nil
}

func (r *SubjectRepository) GetByKey(userID, key string) (*model.Subject, error) {
	var subject model.Subject
	if err := r.db.Where("user_id = ? AND subject_key = ?", userID, key).First(&subject).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query subject failed: %w", err)
	}
	return &subject, nil
}

// ListByUserID returns subjects ordered by key.
func (r *SubjectRepository) ListByUserID(userID string) ([]model.Subject, error) {
	var list []model.Subject
	if err := r.db.Where("user_id = ?", userID).Order("subject_key ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list subjects failed: %w", err)
	}
	return list, nil
}

func (r *SubjectRepository) UpdateGame(userID, key, game string) error {
	if err := r.db.Model(&model.Subject{}).Where("user_id = ? AND subject_key = ?", userID, key).Update("game", game).Error; err != nil {
		return fmt.Errorf("update subject game failed: %w", err)
	}
	return nil
}

func (r *SubjectRepository) Delete(userID, key string) error {
	if err := r.db.Where("user_id = ? AND subject_key = ?", userID, key).Delete(&model.Subject{}).Error; err != nil {
		return fmt.Errorf("delete subject failed: %w", err)
	}
	return nil
}

// GetProfile returns nil when the user has no profile yet.
func (r *SubjectRepository) GetProfile(userID string) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query profile failed: %w", err)
	}
	return &profile, nil
}

// SetActive upserts the user's active subject; "" clears it.
func (r *SubjectRepository) SetActive(userID, key string) error {
	profile := model.Profile{UserID: userID, ActiveSubject: key}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active_subject", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		return fmt.Errorf("set active subject failed: %w", err)
	}
	return nil
}
