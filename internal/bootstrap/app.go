package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"studybuddy/internal/ai"
	"studybuddy/internal/app"
	"studybuddy/internal/cache"
	"studybuddy/internal/config"
	"studybuddy/internal/platform/database"
	rabbitmqClient "studybuddy/internal/platform/rabbitmq"
	redisClient "studybuddy/internal/platform/redis"
	"studybuddy/internal/prompt"
	"studybuddy/internal/repository"
	"studybuddy/internal/retrieval"
	"studybuddy/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB *gorm.DB
	// Redis and MQConn are nil when disabled.
	Redis          *redis.Client
	MQConn         *amqp.Connection
	DocumentWorker *worker.DocumentPersistWorker

	Registry  *retrieval.Registry
	Auth      *app.AuthService
	Subjects  *app.SubjectService
	Questions *app.QuestionService
	Library   *app.LibraryService
	Study     *app.StudyService

	StartedAt time.Time
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New connects every configured dependency, wires the services and rebuilds
// the retrieval index from the database.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := database.New(ctx, database.Options{Driver: cfg.Database.Driver, DSN: cfg.MySQLDSN(), Path: cfg.Database.Path})
	if err != nil {
		return err
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		return err
	}

	documentRepo := repository.NewDocumentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	questionRepo := repository.NewQuestionRepository(db)

	var sink app.DocumentSink = app.NewRepositorySink(documentRepo)
	if cfg.RabbitMQ.Enabled {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.DocumentQueue)
		if err != nil {
			return err
		}
		a.MQConn = conn
		a.DocumentWorker = worker.NewDocumentPersistWorker(conn, documentRepo, cfg.RabbitMQ.DocumentQueue, a.Logger.With("component", "document_worker"))
		if err := a.DocumentWorker.Start(ctx); err != nil {
			return fmt.Errorf("start document worker failed: %w", err)
		}
		sink = app.NewPublisherSink(rabbitmqClient.NewDocumentEventPublisher(conn, cfg.RabbitMQ.DocumentQueue))
	}

	var answers app.AnswerCache
	if cfg.Redis.Enabled {
		client, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.Redis = client
		answers = cache.NewAnswerCache(client, time.Duration(cfg.Redis.AnswerTTLSeconds)*time.Second)
	}

	r := cfg.Retrieval
	registry, err := retrieval.NewRegistry(retrieval.ChunkPolicy{MinRunes: r.MinChunkRunes, MaxRunes: r.MaxChunkRunes})
	if err != nil {
		return err
	}
	a.Registry = registry

	catalog := prompt.DefaultCatalog()
	if cfg.Prompt.StylesFile != "" {
		if catalog, err = prompt.LoadCatalog(cfg.Prompt.StylesFile); err != nil {
			return err
		}
	}

	llm := ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		MaxRetries:  cfg.LLM.MaxRetries,
		Logger:      a.Logger.With("component", "llm"),
		Limiter:     ai.NewRateLimiter(cfg.LLM.RateBurst, cfg.LLM.RatePerMinute),
	})

	a.Auth = app.NewAuthService(cfg.Auth.ClientID, cfg.Auth.ClientSecretHash, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
	a.Subjects = app.NewSubjectService(app.SubjectConfig{
		Store:       subjectRepo,
		Questions:   questionRepo,
		Registry:    registry,
		Sink:        sink,
		Cache:       answers,
		DefaultGame: cfg.Prompt.DefaultGame,
		Logger:      a.Logger.With("component", "subjects"),
	})
	a.Questions = app.NewQuestionService(a.Subjects, questionRepo)
	a.Library = app.NewLibraryService(app.LibraryConfig{
		Subjects:   a.Subjects,
		Normalizer: retrieval.NewNormalizer(retrieval.NormalizerConfig{MaxUploadBytes: r.MaxUploadBytes}),
		Registry:   registry,
		Sink:       sink,
		Logger:     a.Logger.With("component", "library"),
	})
	a.Study = app.NewStudyService(app.StudyConfig{
		Subjects:  a.Subjects,
		Questions: a.Questions,
		Registry:  registry,
		Ranker: retrieval.NewRanker(registry, retrieval.RankConfig{
			TermWeight:      r.TermWeight,
			FrequencyWeight: r.FrequencyWeight,
			PracticeBoost:   r.PracticeBoost,
		}),
		Assembler:     retrieval.NewAssembler(retrieval.AssemblerConfig{MinBudget: r.MinBudget, QuestionShare: r.QuestionShare}),
		Prompts:       prompt.NewBuilder(catalog, cfg.Prompt.DefaultGame),
		LLM:           llm,
		Cache:         answers,
		Budgets:       app.Budgets{Lesson: r.LessonBudget, Ask: r.AskBudget, Test: r.TestBudget},
		TopK:          r.TopK,
		EmptyPolicy:   app.EmptyPolicy(r.EmptyPolicy),
		TestQuestions: cfg.Prompt.TestQuestions,
		MaxQuestions:  cfg.Prompt.MaxQuestions,
		Logger:        a.Logger.With("component", "study"),
	})

	docs, err := documentRepo.ListAll()
	if err != nil {
		return fmt.Errorf("load documents failed: %w", err)
	}
	n, err := a.Library.Hydrate(ctx, docs)
	if err != nil {
		return err
	}
	a.Logger.Info("index hydrated", "documents", n, "stored", len(docs))
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DocumentWorker != nil {
		a.DocumentWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
