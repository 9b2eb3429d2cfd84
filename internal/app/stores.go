package app

import (
	"context"

	"studybuddy/internal/ai"
	"studybuddy/internal/model"
)

type SubjectStore interface {
	Create(subject *model.Subject) error
	GetByKey(userID, key string) (*model.Subject, error)
	ListByUserID(userID string) ([]model.Subject, error)
	UpdateGame(userID, key, game string) error
	Delete(userID, key string) error
	GetProfile(userID string) (*model.Profile, error)
	SetActive(userID, key string) error
}

type QuestionStore interface {
	Create(entry *model.QuestionEntry) error
	ListByScope(userID, subjectKey string) ([]model.QuestionEntry, error)
	DeleteByID(userID, subjectKey string, id uint) error
	DeleteByScope(userID, subjectKey string) error
}

// DocumentSink receives every change to indexed study material.
type DocumentSink interface {
	Upsert(ctx context.Context, doc *model.StudyDocument) error
	Delete(ctx context.Context, userID, subjectKey, originName string) error
	DropScope(ctx context.Context, userID, subjectKey string) error
}

type DocumentEventPublisher interface {
	Publish(ctx context.Context, event model.DocumentEvent) error
}

type DocumentRepository interface {
	Replace(doc *model.StudyDocument) error
	DeleteByOrigin(userID, subjectKey, originName string) (bool, error)
	DeleteByScope(userID, subjectKey string) error
}

type AnswerCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, answer string) error
	InvalidateScope(ctx context.Context, userID, subjectKey string) error
}

type Completer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

// RepositorySink writes changes straight to the database.
type RepositorySink struct {
	repo DocumentRepository
}

func NewRepositorySink(repo DocumentRepository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Upsert(_ context.Context, doc *model.StudyDocument) error {
	return s.repo.Replace(doc)
}

func (s *RepositorySink) Delete(_ context.Context, userID, subjectKey, originName string) error {
	_, err := s.repo.DeleteByOrigin(userID, subjectKey, originName)
	return err
}

func (s *RepositorySink) DropScope(_ context.Context, userID, subjectKey string) error {
	return s.repo.DeleteByScope(userID, subjectKey)
}

// PublisherSink hands changes to the broker; the persist worker applies them.
type PublisherSink struct {
	publisher DocumentEventPublisher
}

func NewPublisherSink(publisher DocumentEventPublisher) *PublisherSink {
	return &PublisherSink{publisher: publisher}
}

func (s *PublisherSink) Upsert(ctx context.Context, doc *model.StudyDocument) error {
	return s.publisher.Publish(ctx, model.DocumentEvent{
		Op:         model.DocumentUpsert,
		UserID:     doc.UserID,
		SubjectKey: doc.SubjectKey,
		OriginName: doc.OriginName,
		Document:   doc,
	})
}

func (s *PublisherSink) Delete(ctx context.Context, userID, subjectKey, originName string) error {
	return s.publisher.Publish(ctx, model.DocumentEvent{
		Op:         model.DocumentDelete,
		UserID:     userID,
		SubjectKey: subjectKey,
		OriginName: originName,
	})
}

func (s *PublisherSink) DropScope(ctx context.Context, userID, subjectKey string) error {
	return s.publisher.Publish(ctx, model.DocumentEvent{
		Op:         model.DocumentDropScope,
		UserID:     userID,
		SubjectKey: subjectKey,
	})
}
