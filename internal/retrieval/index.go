package retrieval

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DocumentInfo is the metadata view of an indexed document.
type DocumentInfo struct {
	ID         string     `json:"id"`
	OriginName string     `json:"origin_name"`
	Folder     FolderKind `json:"folder"`
	UploadedAt time.Time  `json:"uploaded_at"`
	PageCount  int        `json:"page_count"`
	ChunkCount int        `json:"chunk_count"`
	Size       int        `json:"size"`
}

type indexedDoc struct {
	info   DocumentInfo
	chunks []Chunk
}

// Index holds the documents and chunks of one scope. Mutations and reads are
// serialized by a single RWMutex so a reader never sees a half-replaced
// document set. writeMu orders whole write operations, including the
// durable write that precedes the index change.
type Index struct {
	writeMu     sync.Mutex
	dropped     bool
	mu          sync.RWMutex
	scope       Scope
	policy      ChunkPolicy
	docs        map[string]*indexedDoc
	fingerprint string
}

func newIndex(scope Scope, policy ChunkPolicy) *Index {
	return &Index{scope: scope, policy: policy, docs: make(map[string]*indexedDoc)}
}

func (ix *Index) Scope() Scope { return ix.scope }

// Insert chunks doc and installs it, replacing any document with the same
// origin name in one step.
func (ix *Index) Insert(doc Document) ([]Chunk, error) {
	chunks := ix.policy.Split(doc)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s produced no chunks: %w", doc.OriginName, ErrExtractionFailed)
	}
	entry := &indexedDoc{
		info: DocumentInfo{
			ID:         doc.ID,
			OriginName: doc.OriginName,
			Folder:     doc.Folder,
			UploadedAt: doc.UploadedAt,
			PageCount:  len(doc.Pages),
			ChunkCount: len(chunks),
			Size:       doc.Size,
		},
		chunks: chunks,
	}

	ix.mu.Lock()
	ix.docs[doc.OriginName] = entry
	ix.refreshFingerprintLocked()
	ix.mu.Unlock()

	out := make([]Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// Remove drops a document and all of its chunks.
func (ix *Index) Remove(originName string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.docs[originName]; !ok {
		return fmt.Errorf("%s: %w", originName, ErrDocumentNotFound)
	}
	delete(ix.docs, originName)
	ix.refreshFingerprintLocked()
	return nil
}

// LookupAll returns every chunk ordered by origin name, then sequence.
func (ix *Index) LookupAll() []Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []Chunk
	for _, name := range ix.sortedOriginsLocked() {
		out = append(out, ix.docs[name].chunks...)
	}
	return out
}

// ChunksOf returns the chunks of one document.
func (ix *Index) ChunksOf(originName string) []Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	entry, ok := ix.docs[originName]
	if !ok {
		return nil
	}
	out := make([]Chunk, len(entry.chunks))
	copy(out, entry.chunks)
	return out
}

// Documents lists document metadata, newest upload first.
func (ix *Index) Documents() []DocumentInfo {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]DocumentInfo, 0, len(ix.docs))
	for _, entry := range ix.docs {
		out = append(out, entry.info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].OriginName < out[j].OriginName
	})
	return out
}

// Fingerprint identifies the current document set; it changes on every
// insert, replace and remove.
func (ix *Index) Fingerprint() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.fingerprint
}

// view runs fn under the read lock.
func (ix *Index) view(fn func(docs map[string]*indexedDoc)) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	fn(ix.docs)
}

func (ix *Index) sortedOriginsLocked() []string {
	names := make([]string, 0, len(ix.docs))
	for name := range ix.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (ix *Index) refreshFingerprintLocked() {
	if len(ix.docs) == 0 {
		ix.fingerprint = ""
		return
	}
	h := sha1.New()
	for _, name := range ix.sortedOriginsLocked() {
		entry := ix.docs[name]
		fmt.Fprintf(h, "%s|%s|%s|%d\n", name, entry.info.ID, entry.info.Folder, entry.info.UploadedAt.UnixNano())
	}
	ix.fingerprint = hex.EncodeToString(h.Sum(nil)[:8])
}

// Registry is the explicitly keyed store of per-scope indexes. It only guards
// the scope map; each Index guards its own contents.
type Registry struct {
	mu      sync.Mutex
	policy  ChunkPolicy
	indexes map[Scope]*Index
}

func NewRegistry(policy ChunkPolicy) (*Registry, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Registry{policy: policy, indexes: make(map[Scope]*Index)}, nil
}

// Policy returns the chunk policy applied by every index.
func (r *Registry) Policy() ChunkPolicy { return r.policy }

// Index returns the index for scope, creating an empty one on first use.
func (r *Registry) Index(scope Scope) (*Index, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ix, ok := r.indexes[scope]
	if !ok {
		ix = newIndex(scope, r.policy)
		r.indexes[scope] = ix
	}
	return ix, nil
}

// Lookup returns the index for scope without creating it.
func (r *Registry) Lookup(scope Scope) (*Index, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ix, ok := r.indexes[scope]
	return ix, ok
}

// Insert is shorthand for Index(scope).Insert(doc).
func (r *Registry) Insert(scope Scope, doc Document) ([]Chunk, error) {
	ix, err := r.Index(scope)
	if err != nil {
		return nil, err
	}
	return ix.Insert(doc)
}

// Remove deletes one document from scope.
func (r *Registry) Remove(scope Scope, originName string) error {
	ix, ok := r.Lookup(scope)
	if !ok {
		return fmt.Errorf("%s: %w", originName, ErrDocumentNotFound)
	}
	return ix.Remove(originName)
}

// LookupAll returns every chunk of scope; an unknown scope is an empty corpus.
func (r *Registry) LookupAll(scope Scope) []Chunk {
	ix, ok := r.Lookup(scope)
	if !ok {
		return nil
	}
	return ix.LookupAll()
}

// Mutate runs fn with exclusive write access to the index of scope. Writers
// of one scope run one at a time, so a store write and the index change that
// follows it land in the same order for every writer. Readers are not
// blocked. A scope dropped while fn was waiting yields ErrScopeDropped.
func (r *Registry) Mutate(scope Scope, fn func(ix *Index) error) error {
	ix, err := r.Index(scope)
	if err != nil {
		return err
	}
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if ix.dropped {
		return fmt.Errorf("%s: %w", scope, ErrScopeDropped)
	}
	return fn(ix)
}

// Drop tears down a scope, e.g. when its subject is deleted.
func (r *Registry) Drop(scope Scope) {
	_ = r.DropWith(scope, nil)
}

// DropWith runs fn under the scope's write lock and drops the scope when fn
// succeeds. Writers waiting on the lock then fail with ErrScopeDropped.
func (r *Registry) DropWith(scope Scope, fn func() error) error {
	ix, err := r.Index(scope)
	if err != nil {
		return err
	}
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	if fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}
	ix.dropped = true
	r.mu.Lock()
	if r.indexes[scope] == ix {
		delete(r.indexes, scope)
	}
	r.mu.Unlock()
	return nil
}
