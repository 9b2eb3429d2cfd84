package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"studybuddy/internal/cache"
	"studybuddy/internal/prompt"
	"studybuddy/internal/retrieval"
)

// EmptyPolicy decides what happens when nothing relevant is retrieved.
type EmptyPolicy string

const (
	EmptyCaveat EmptyPolicy = "caveat"
	EmptyRefuse EmptyPolicy = "refuse"
)

type Budgets struct {
	Lesson int
	Ask    int
	Test   int
}

type StudyConfig struct {
	Subjects  *SubjectService
	Questions *QuestionService
	Registry  *retrieval.Registry
	Ranker    *retrieval.Ranker
	Assembler *retrieval.Assembler
	Prompts   *prompt.Builder
	LLM       Completer
	// Cache is optional.
	Cache         AnswerCache
	Budgets       Budgets
	TopK          int
	EmptyPolicy   EmptyPolicy
	TestQuestions int
	MaxQuestions  int
	Logger        *slog.Logger
}

// StudyService answers lesson, question and practice test requests from the
// active subject's material.
type StudyService struct {
	cfg    StudyConfig
	logger *slog.Logger
}

type StudyInput struct {
	UserID string
	Style  string
	// Topic is the lesson topic, the question, or an optional test focus.
	Topic string
	// Questions is the practice test length; 0 uses the default.
	Questions int
}

type StudyResult struct {
	Kind    retrieval.RequestKind `json:"kind"`
	Subject string                `json:"subject"`
	// Text is the model output followed by the verified source list.
	Text      string                   `json:"text"`
	Raw       string                   `json:"-"`
	Citations retrieval.CitationReport `json:"citations"`
	Sources   []string                 `json:"sources"`
	// NoMaterial is set when the answer is not grounded in uploads.
	NoMaterial bool `json:"no_material"`
	Cached     bool `json:"cached"`
}

const defaultTestQuestions = 10

func NewStudyService(cfg StudyConfig) *StudyService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	if cfg.EmptyPolicy == "" {
		cfg.EmptyPolicy = EmptyCaveat
	}
	if cfg.TestQuestions <= 0 {
		cfg.TestQuestions = defaultTestQuestions
	}
	if cfg.MaxQuestions < cfg.TestQuestions {
		cfg.MaxQuestions = cfg.TestQuestions
	}
	return &StudyService{cfg: cfg, logger: cfg.Logger}
}

// Styles exposes the teaching style catalog.
func (s *StudyService) Styles() []prompt.Style {
	return s.cfg.Prompts.Catalog().Styles()
}

func (s *StudyService) Teach(ctx context.Context, in StudyInput) (*StudyResult, error) {
	return s.run(ctx, retrieval.RequestLesson, in)
}

func (s *StudyService) Ask(ctx context.Context, in StudyInput) (*StudyResult, error) {
	return s.run(ctx, retrieval.RequestAsk, in)
}

func (s *StudyService) MakeTest(ctx context.Context, in StudyInput) (*StudyResult, error) {
	return s.run(ctx, retrieval.RequestTest, in)
}

func (s *StudyService) run(ctx context.Context, kind retrieval.RequestKind, in StudyInput) (*StudyResult, error) {
	if s.cfg.LLM == nil {
		return nil, ErrLLMConfig
	}
	topic := strings.TrimSpace(in.Topic)
	if kind != retrieval.RequestTest {
		if topic == "" {
			return nil, fmt.Errorf("%w: topic is required", ErrInvalidInput)
		}
		if in.Style == "" {
			in.Style = prompt.DefaultStyle
		}
		if _, err := s.cfg.Prompts.Catalog().Lookup(in.Style); err != nil {
			return nil, err
		}
	}

	scope, subject, err := s.cfg.Subjects.ActiveScope(in.UserID)
	if err != nil {
		return nil, err
	}

	n := in.Questions
	if n <= 0 {
		n = s.cfg.TestQuestions
	}
	if n > s.cfg.MaxQuestions {
		n = s.cfg.MaxQuestions
	}

	var entries []retrieval.QuestionEntry
	if kind == retrieval.RequestTest {
		if entries, err = s.cfg.Questions.Entries(scope); err != nil {
			return nil, err
		}
	}

	bundle, err := s.cfg.Assembler.Assemble(s.retrieve(scope, kind, topic), entries, s.budget(kind))
	if err != nil {
		if errors.Is(err, retrieval.ErrBudgetExceeded) {
			s.logger.Error("bundle budget misconfigured", "kind", kind, "error", err)
		}
		return nil, err
	}
	if bundle.Empty() && s.cfg.EmptyPolicy == EmptyRefuse {
		return nil, ErrNoRelevantMaterial
	}

	game := s.cfg.Subjects.GameOf(subject)
	req := prompt.Request{Kind: kind, Style: in.Style, Topic: topic, Game: game, Questions: n}

	result := &StudyResult{Kind: kind, Subject: subject.Name, NoMaterial: bundle.Empty()}
	cacheKey := s.cacheKey(scope, req, entries)
	raw, hit := s.cached(ctx, cacheKey)
	if !hit {
		messages, err := s.cfg.Prompts.Build(req, bundle)
		if err != nil {
			return nil, err
		}
		raw, err = s.cfg.LLM.Complete(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("generate %s failed: %w", kind, err)
		}
		s.store(ctx, cacheKey, raw)
	}

	result.Raw = raw
	result.Cached = hit
	result.Citations = retrieval.VerifyCitations(bundle, raw)
	result.Sources = result.Citations.Verified
	result.Text = retrieval.Annotate(raw, result.Citations)
	if len(result.Citations.Unknown) > 0 {
		s.logger.Warn("response cites unknown sources", "scope", scope.String(), "kind", kind, "unknown", result.Citations.Unknown)
	}
	s.logger.Info("study request served",
		"scope", scope.String(), "kind", kind, "items", len(bundle.Items), "used", bundle.Used,
		"truncated", bundle.Truncated, "cached", hit)
	return result, nil
}

func (s *StudyService) retrieve(scope retrieval.Scope, kind retrieval.RequestKind, topic string) []retrieval.Ranked {
	opts := retrieval.RankOptions{Request: kind, Limit: s.cfg.TopK}
	if terms := retrieval.Terms(topic); len(terms) > 0 {
		return s.cfg.Ranker.Rank(scope, terms, opts)
	}
	if kind != retrieval.RequestTest {
		return nil
	}
	// a test without a topic draws on practice tests first, then lectures
	opts.Folder = retrieval.PracticeTest
	ranked := s.cfg.Ranker.Browse(scope, opts)
	if len(ranked) < s.cfg.TopK {
		opts.Folder = retrieval.Lecture
		opts.Limit = s.cfg.TopK - len(ranked)
		ranked = append(ranked, s.cfg.Ranker.Browse(scope, opts)...)
	}
	return ranked
}

func (s *StudyService) budget(kind retrieval.RequestKind) int {
	switch kind {
	case retrieval.RequestLesson:
		return s.cfg.Budgets.Lesson
	case retrieval.RequestTest:
		return s.cfg.Budgets.Test
	}
	return s.cfg.Budgets.Ask
}

func (s *StudyService) cacheKey(scope retrieval.Scope, req prompt.Request, entries []retrieval.QuestionEntry) string {
	if s.cfg.Cache == nil {
		return ""
	}
	fingerprint := ""
	if ix, ok := s.cfg.Registry.Lookup(scope); ok {
		fingerprint = ix.Fingerprint()
	}
	parts := []string{string(req.Kind), strings.ToLower(req.Style), req.Game, strconv.Itoa(req.Questions), strings.ToLower(req.Topic)}
	for _, e := range entries {
		parts = append(parts, strconv.FormatUint(uint64(e.ID), 10))
	}
	return cache.AnswerKey(scope.UserID, scope.Subject, fingerprint, strings.Join(parts, "|"))
}

func (s *StudyService) cached(ctx context.Context, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	raw, hit, err := s.cfg.Cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("answer cache read failed", "error", err)
		return "", false
	}
	return raw, hit
}

func (s *StudyService) store(ctx context.Context, key, raw string) {
	if key == "" {
		return
	}
	if err := s.cfg.Cache.Set(ctx, key, raw); err != nil {
		s.logger.Warn("answer cache write failed", "error", err)
	}
}
