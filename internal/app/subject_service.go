package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"studybuddy/internal/model"
	"studybuddy/internal/retrieval"
)

const defaultGame = "popular video games"

type SubjectConfig struct {
	Store     SubjectStore
	Questions QuestionStore
	Registry  *retrieval.Registry
	Sink      DocumentSink
	// Cache is optional.
	Cache       AnswerCache
	DefaultGame string
	Logger      *slog.Logger
}

// SubjectService manages a user's subjects and which one is active. Deleting
// a subject tears down everything stored under its scope.
type SubjectService struct {
	store       SubjectStore
	questions   QuestionStore
	registry    *retrieval.Registry
	sink        DocumentSink
	cache       AnswerCache
	defaultGame string
	logger      *slog.Logger
}

type SubjectView struct {
	model.Subject
	Active bool `json:"active"`
}

func NewSubjectService(cfg SubjectConfig) *SubjectService {
	if cfg.DefaultGame == "" {
		cfg.DefaultGame = defaultGame
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SubjectService{
		store:       cfg.Store,
		questions:   cfg.Questions,
		registry:    cfg.Registry,
		sink:        cfg.Sink,
		cache:       cfg.Cache,
		defaultGame: cfg.DefaultGame,
		logger:      cfg.Logger,
	}
}

// GameOf returns the subject's game preference or the default.
func (s *SubjectService) GameOf(subject *model.Subject) string {
	if subject == nil || strings.TrimSpace(subject.Game) == "" {
		return s.defaultGame
	}
	return subject.Game
}

// Create adds a subject. The first subject of a user becomes active.
func (s *SubjectService) Create(userID, name, game string) (*model.Subject, error) {
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	key := retrieval.SubjectKey(name)
	if userID == "" || key == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.store.GetByKey(userID, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSubjectExists
	}

	subject := &model.Subject{UserID: userID, Key: key, Name: name, Game: strings.TrimSpace(game)}
	if err := s.store.Create(subject); err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.ActiveSubject == "" {
		if err := s.store.SetActive(userID, key); err != nil {
			return nil, err
		}
	}
	s.logger.Info("subject created", "user", userID, "subject", key)
	return subject, nil
}

func (s *SubjectService) List(userID string) ([]SubjectView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	subjects, err := s.store.ListByUserID(userID)
	if err != nil {
		return nil, err
	}
	active, err := s.activeKey(userID)
	if err != nil {
		return nil, err
	}
	out := make([]SubjectView, len(subjects))
	for i, subj := range subjects {
		out[i] = SubjectView{Subject: subj, Active: subj.Key == active}
	}
	return out, nil
}

// Switch makes the named subject active.
func (s *SubjectService) Switch(userID, name string) (*model.Subject, error) {
	subject, err := s.get(userID, name)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActive(userID, subject.Key); err != nil {
		return nil, err
	}
	return subject, nil
}

// Active returns the user's active subject or ErrNoActiveSubject.
func (s *SubjectService) Active(userID string) (*model.Subject, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	key, err := s.activeKey(userID)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNoActiveSubject
	}
	subject, err := s.store.GetByKey(userID, key)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrNoActiveSubject
	}
	return subject, nil
}

// ActiveScope resolves the retrieval scope of the active subject.
func (s *SubjectService) ActiveScope(userID string) (retrieval.Scope, *model.Subject, error) {
	subject, err := s.Active(userID)
	if err != nil {
		return retrieval.Scope{}, nil, err
	}
	return retrieval.Scope{UserID: subject.UserID, Subject: subject.Key}, subject, nil
}

// SetGame sets the active subject's game; "" restores the default.
func (s *SubjectService) SetGame(userID, game string) (*model.Subject, error) {
	subject, err := s.Active(userID)
	if err != nil {
		return nil, err
	}
	game = strings.TrimSpace(game)
	if err := s.store.UpdateGame(userID, subject.Key, game); err != nil {
		return nil, fmt.Errorf("set game failed: %w", err)
	}
	subject.Game = game
	return subject, nil
}

// Delete removes a subject with its documents, question bank and cached
// answers. If it was active, the next subject by key becomes active.
func (s *SubjectService) Delete(ctx context.Context, userID, name string) error {
	subject, err := s.get(userID, name)
	if err != nil {
		return err
	}
	scope := retrieval.Scope{UserID: userID, Subject: subject.Key}

	err = s.registry.DropWith(scope, func() error {
		if err := s.sink.DropScope(ctx, userID, subject.Key); err != nil {
			return fmt.Errorf("drop subject documents failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.questions.DeleteByScope(userID, subject.Key); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateScope(ctx, userID, subject.Key); err != nil {
			s.logger.Warn("invalidate answer cache failed", "scope", scope.String(), "error", err)
		}
	}
	if err := s.store.Delete(userID, subject.Key); err != nil {
		return err
	}

	active, err := s.activeKey(userID)
	if err != nil {
		return err
	}
	if active == subject.Key {
		next := ""
		remaining, err := s.store.ListByUserID(userID)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			next = remaining[0].Key
		}
		if err := s.store.SetActive(userID, next); err != nil {
			return err
		}
	}
	s.logger.Info("subject deleted", "scope", scope.String())
	return nil
}

func (s *SubjectService) get(userID, name string) (*model.Subject, error) {
	userID = strings.TrimSpace(userID)
	key := retrieval.SubjectKey(name)
	if userID == "" || key == "" {
		return nil, ErrInvalidInput
	}
	subject, err := s.store.GetByKey(userID, key)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}
	return subject, nil
}

func (s *SubjectService) activeKey(userID string) (string, error) {
	profile, err := s.store.GetProfile(userID)
	if err != nil {
		return "", err
	}
	if profile == nil {
		return "", nil
	}
	return profile.ActiveSubject, nil
}
