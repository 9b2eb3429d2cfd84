package app

import (
	"strings"
	"time"

	"studybuddy/internal/model"
	"studybuddy/internal/retrieval"
)

// QuestionService manages the question bank of the active subject.
type QuestionService struct {
	subjects *SubjectService
	store    QuestionStore
	now      func() time.Time
}

func NewQuestionService(subjects *SubjectService, store QuestionStore) *QuestionService {
	return &QuestionService{subjects: subjects, store: store, now: time.Now}
}

func (s *QuestionService) Add(userID, question, answer string) (*model.QuestionEntry, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrInvalidInput
	}
	scope, _, err := s.subjects.ActiveScope(userID)
	if err != nil {
		return nil, err
	}
	entry := &model.QuestionEntry{
		UserID:     scope.UserID,
		SubjectKey: scope.Subject,
		Question:   question,
		Answer:     strings.TrimSpace(answer),
		AddedAt:    s.now(),
	}
	if err := s.store.Create(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the bank in the order entries were added.
func (s *QuestionService) List(userID string) ([]model.QuestionEntry, error) {
	scope, _, err := s.subjects.ActiveScope(userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListByScope(scope.UserID, scope.Subject)
}

// Remove deletes the n-th entry (1-based, as shown by List).
func (s *QuestionService) Remove(userID string, n int) (*model.QuestionEntry, error) {
	list, err := s.List(userID)
	if err != nil {
		return nil, err
	}
	if n < 1 || n > len(list) {
		return nil, ErrQuestionNotFound
	}
	entry := list[n-1]
	if err := s.store.DeleteByID(entry.UserID, entry.SubjectKey, entry.ID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Entries returns the bank of scope in the form the assembler consumes.
func (s *QuestionService) Entries(scope retrieval.Scope) ([]retrieval.QuestionEntry, error) {
	list, err := s.store.ListByScope(scope.UserID, scope.Subject)
	if err != nil {
		return nil, err
	}
	out := make([]retrieval.QuestionEntry, len(list))
	for i, e := range list {
		out[i] = retrieval.QuestionEntry{ID: e.ID, Question: e.Question, Answer: e.Answer, AddedAt: e.AddedAt}
	}
	return out, nil
}
