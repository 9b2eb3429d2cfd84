package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"studybuddy/internal/ai"
	"studybuddy/internal/platform/database"
	"studybuddy/internal/prompt"
	"studybuddy/internal/repository"
	"studybuddy/internal/retrieval"
)

type fakeCompleter struct {
	mu    sync.Mutex
	reply func(messages []ai.ChatMessage) string
	calls [][]ai.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.reply == nil {
		return "ok", nil
	}
	return f.reply(messages), nil
}

func (f *fakeCompleter) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	msgs := f.calls[len(f.calls)-1]
	return msgs[len(msgs)-1].Content
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[key] = answer
	return nil
}

func (c *memoryCache) InvalidateScope(_ context.Context, userID, subjectKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := "study:answer:" + userID + ":" + subjectKey + ":"
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

type harness struct {
	subjects  *SubjectService
	questions *QuestionService
	library   *LibraryService
	study     *StudyService
	registry  *retrieval.Registry
	documents *repository.DocumentRepository
	llm       *fakeCompleter
	cache     *memoryCache
}

type harnessOption func(*StudyConfig)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.New(context.Background(), database.Options{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "app.db")})
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	registry, err := retrieval.NewRegistry(retrieval.ChunkPolicy{MinRunes: 20, MaxRunes: 400})
	if err != nil {
		t.Fatal(err)
	}
	documents := repository.NewDocumentRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	sink := NewRepositorySink(documents)
	answerCache := &memoryCache{}

	subjects := NewSubjectService(SubjectConfig{
		Store:     repository.NewSubjectRepository(db),
		Questions: questionRepo,
		Registry:  registry,
		Sink:      sink,
		Cache:     answerCache,
		Logger:    logger,
	})
	questions := NewQuestionService(subjects, questionRepo)
	library := NewLibraryService(LibraryConfig{
		Subjects:   subjects,
		Normalizer: retrieval.NewNormalizer(retrieval.NormalizerConfig{MaxUploadBytes: 1 << 20}),
		Registry:   registry,
		Sink:       sink,
		Logger:     logger,
	})
	llm := &fakeCompleter{}
	cfg := StudyConfig{
		Subjects:      subjects,
		Questions:     questions,
		Registry:      registry,
		Ranker:        retrieval.NewRanker(registry, retrieval.DefaultRankConfig()),
		Assembler:     retrieval.NewAssembler(retrieval.DefaultAssemblerConfig()),
		Prompts:       prompt.NewBuilder(prompt.DefaultCatalog(), ""),
		LLM:           llm,
		Cache:         answerCache,
		Budgets:       Budgets{Lesson: 4000, Ask: 4000, Test: 4000},
		TopK:          5,
		EmptyPolicy:   EmptyCaveat,
		TestQuestions: 5,
		MaxQuestions:  10,
		Logger:        logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &harness{
		subjects:  subjects,
		questions: questions,
		library:   library,
		study:     NewStudyService(cfg),
		registry:  registry,
		documents: documents,
		llm:       llm,
		cache:     answerCache,
	}
}

func (h *harness) upload(t *testing.T, userID, name string, folder retrieval.FolderKind, text string) *UploadResult {
	t.Helper()
	res, err := h.library.Upload(context.Background(), UploadInput{UserID: userID, Filename: name, Folder: folder, Raw: []byte(text)})
	if err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return res
}
