package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"studybuddy/internal/model"
	"studybuddy/internal/retrieval"
)

const hydrateConcurrency = 4

type LibraryConfig struct {
	Subjects   *SubjectService
	Normalizer *retrieval.Normalizer
	Registry   *retrieval.Registry
	Sink       DocumentSink
	Logger     *slog.Logger
}

// LibraryService owns uploads. A document is normalized completely and
// handed to the sink before the index changes, so a failed upload leaves
// both untouched.
type LibraryService struct {
	subjects   *SubjectService
	normalizer *retrieval.Normalizer
	registry   *retrieval.Registry
	sink       DocumentSink
	logger     *slog.Logger
}

type UploadInput struct {
	UserID   string
	Filename string
	Folder   retrieval.FolderKind
	Raw      []byte
}

type UploadResult struct {
	Subject  string                 `json:"subject"`
	Document retrieval.DocumentInfo `json:"document"`
	Replaced bool                   `json:"replaced"`
}

func NewLibraryService(cfg LibraryConfig) *LibraryService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LibraryService{
		subjects:   cfg.Subjects,
		normalizer: cfg.Normalizer,
		registry:   cfg.Registry,
		sink:       cfg.Sink,
		logger:     cfg.Logger,
	}
}

// MaxUploadBytes is the size cap applied by Upload.
func (s *LibraryService) MaxUploadBytes() int {
	return s.normalizer.MaxUploadBytes()
}

// Upload stores a file in the active subject. Re-uploading an origin name
// replaces the earlier document and all of its chunks.
func (s *LibraryService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if !in.Folder.Valid() {
		return nil, fmt.Errorf("%w: folder must be lecture or practice", ErrInvalidInput)
	}
	scope, _, err := s.subjects.ActiveScope(in.UserID)
	if err != nil {
		return nil, err
	}

	doc, err := s.normalizer.Normalize(in.Raw, in.Filename, in.Folder)
	if err != nil {
		s.logger.Info("upload rejected", "scope", scope.String(), "file", in.Filename, "error", err)
		return nil, err
	}
	if len(s.registry.Policy().Split(doc)) == 0 {
		return nil, fmt.Errorf("%s: %w", doc.OriginName, retrieval.ErrExtractionFailed)
	}

	var (
		replaced bool
		chunks   []retrieval.Chunk
	)
	err = s.registry.Mutate(scope, func(ix *retrieval.Index) error {
		replaced = len(ix.ChunksOf(doc.OriginName)) > 0
		if err := s.sink.Upsert(ctx, toStudyDocument(scope, doc)); err != nil {
			return fmt.Errorf("persist document failed: %w", err)
		}
		var err error
		chunks, err = ix.Insert(doc)
		return err
	})
	if err != nil {
		return nil, scopeErr(err)
	}

	info := retrieval.DocumentInfo{
		ID:         doc.ID,
		OriginName: doc.OriginName,
		Folder:     doc.Folder,
		UploadedAt: doc.UploadedAt,
		PageCount:  len(doc.Pages),
		ChunkCount: len(chunks),
		Size:       doc.Size,
	}
	s.logger.Info("document indexed",
		"scope", scope.String(), "origin", doc.OriginName, "folder", doc.Folder,
		"pages", info.PageCount, "chunks", info.ChunkCount, "replaced", replaced)
	return &UploadResult{Subject: scope.Subject, Document: info, Replaced: replaced}, nil
}

// List returns the active subject's documents, newest first.
func (s *LibraryService) List(userID string) ([]retrieval.DocumentInfo, error) {
	scope, _, err := s.subjects.ActiveScope(userID)
	if err != nil {
		return nil, err
	}
	ix, ok := s.registry.Lookup(scope)
	if !ok {
		return []retrieval.DocumentInfo{}, nil
	}
	return ix.Documents(), nil
}

// Delete removes one document of the active subject.
func (s *LibraryService) Delete(ctx context.Context, userID, originName string) error {
	scope, _, err := s.subjects.ActiveScope(userID)
	if err != nil {
		return err
	}
	err = s.registry.Mutate(scope, func(ix *retrieval.Index) error {
		if len(ix.ChunksOf(originName)) == 0 {
			return fmt.Errorf("%s: %w", originName, retrieval.ErrDocumentNotFound)
		}
		if err := s.sink.Delete(ctx, scope.UserID, scope.Subject, originName); err != nil {
			return fmt.Errorf("delete document failed: %w", err)
		}
		if err := ix.Remove(originName); err != nil && !errors.Is(err, retrieval.ErrDocumentNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return scopeErr(err)
	}
	s.logger.Info("document removed", "scope", scope.String(), "origin", originName)
	return nil
}

// Hydrate rebuilds the in-memory index from persisted documents, re-chunking
// them with the current policy. Scopes load concurrently.
func (s *LibraryService) Hydrate(ctx context.Context, docs []model.StudyDocument) (int, error) {
	byScope := make(map[retrieval.Scope][]model.StudyDocument)
	for _, d := range docs {
		scope := retrieval.Scope{UserID: d.UserID, Subject: d.SubjectKey}
		byScope[scope] = append(byScope[scope], d)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	counts := make(chan int, len(byScope))
	for scope, list := range byScope {
		scope, list := scope, list
		g.Go(func() error {
			ix, err := s.registry.Index(scope)
			if err != nil {
				return err
			}
			n := 0
			for _, d := range list {
				if err := gctx.Err(); err != nil {
					return err
				}
				if _, err := ix.Insert(fromStudyDocument(d)); err != nil {
					s.logger.Warn("skip unindexable document", "scope", scope.String(), "origin", d.OriginName, "error", err)
					continue
				}
				n++
			}
			counts <- n
			return nil
		})
	}
	err := g.Wait()
	close(counts)
	total := 0
	for n := range counts {
		total += n
	}
	if err != nil {
		return total, fmt.Errorf("hydrate index failed: %w", err)
	}
	return total, nil
}

// scopeErr reports a write that lost the race with its subject's deletion as
// a missing subject.
func scopeErr(err error) error {
	if errors.Is(err, retrieval.ErrScopeDropped) {
		return fmt.Errorf("%w: %v", ErrSubjectNotFound, err)
	}
	return err
}

func toStudyDocument(scope retrieval.Scope, doc retrieval.Document) *model.StudyDocument {
	pages := make([]model.DocumentPage, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		pages = append(pages, model.DocumentPage{DocumentID: doc.ID, Number: p.Number, Text: p.Text})
	}
	return &model.StudyDocument{
		ID:         doc.ID,
		UserID:     scope.UserID,
		SubjectKey: scope.Subject,
		OriginName: doc.OriginName,
		FolderKind: string(doc.Folder),
		UploadedAt: doc.UploadedAt,
		PageCount:  len(doc.Pages),
		Size:       doc.Size,
		Pages:      pages,
	}
}

func fromStudyDocument(d model.StudyDocument) retrieval.Document {
	pages := make([]retrieval.Page, 0, len(d.Pages))
	for _, p := range d.Pages {
		pages = append(pages, retrieval.Page{Number: p.Number, Text: p.Text})
	}
	return retrieval.Document{
		ID:         d.ID,
		OriginName: d.OriginName,
		Folder:     retrieval.FolderKind(d.FolderKind),
		Pages:      pages,
		UploadedAt: d.UploadedAt,
		Size:       d.Size,
	}
}
