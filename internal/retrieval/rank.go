package retrieval

import (
	"math"
	"sort"
	"time"
)

// RankConfig holds the scoring weights. Only the qualitative ordering is
// fixed; the numbers are product tuning.
type RankConfig struct {
	TermWeight      float64
	FrequencyWeight float64
	PracticeBoost   float64
}

func DefaultRankConfig() RankConfig {
	return RankConfig{TermWeight: 1.0, FrequencyWeight: 0.1, PracticeBoost: 0.5}
}

// RankOptions narrows a ranking request.
type RankOptions struct {
	// Folder restricts candidates to one folder kind when non-empty.
	Folder  FolderKind
	Request RequestKind
	// Limit caps the number of results; 0 means no cap.
	Limit int
}

// Ranked is one scored chunk.
type Ranked struct {
	Chunk      Chunk     `json:"chunk"`
	Score      float64   `json:"score"`
	Boosted    bool      `json:"boosted"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Ranker scores chunks of a scope against query terms.
type Ranker struct {
	registry *Registry
	cfg      RankConfig
}

func NewRanker(registry *Registry, cfg RankConfig) *Ranker {
	if cfg.TermWeight <= 0 {
		cfg.TermWeight = 1.0
	}
	if cfg.FrequencyWeight < 0 {
		cfg.FrequencyWeight = 0
	}
	if cfg.PracticeBoost < 0 {
		cfg.PracticeBoost = 0
	}
	return &Ranker{registry: registry, cfg: cfg}
}

// Rank returns chunks containing at least one query term, best first. The
// order is total: score desc, boosted first, newer upload first, origin name
// asc, sequence asc. No match is an empty result, not an error.
func (r *Ranker) Rank(scope Scope, queryTerms []string, opts RankOptions) []Ranked {
	terms := make([]string, 0, len(queryTerms))
	seen := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		t = normalizeTerm(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return nil
	}

	var out []Ranked
	r.each(scope, opts, func(c Chunk, uploadedAt time.Time) {
		counts := termCounts(c.Text)
		matched, occurrences := 0, 0
		for _, t := range terms {
			if n := counts[t]; n > 0 {
				matched++
				occurrences += n
			}
		}
		if matched == 0 {
			return
		}
		score := r.cfg.TermWeight*float64(matched) + r.cfg.FrequencyWeight*math.Log1p(float64(occurrences-matched))
		boosted := r.boosts(c, opts)
		if boosted {
			score += r.cfg.PracticeBoost
		}
		out = append(out, Ranked{Chunk: c, Score: score, Boosted: boosted, UploadedAt: uploadedAt})
	})
	sortRanked(out)
	return limit(out, opts.Limit)
}

// Browse returns every candidate chunk with a zero score in tie-break order.
// It serves directives with no topic, such as "generate a test".
func (r *Ranker) Browse(scope Scope, opts RankOptions) []Ranked {
	var out []Ranked
	r.each(scope, opts, func(c Chunk, uploadedAt time.Time) {
		out = append(out, Ranked{Chunk: c, Boosted: r.boosts(c, opts), UploadedAt: uploadedAt})
	})
	sortRanked(out)
	return limit(out, opts.Limit)
}

func (r *Ranker) boosts(c Chunk, opts RankOptions) bool {
	return opts.Request == RequestLesson && c.Folder == PracticeTest
}

func (r *Ranker) each(scope Scope, opts RankOptions, fn func(Chunk, time.Time)) {
	ix, ok := r.registry.Lookup(scope)
	if !ok {
		return
	}
	ix.view(func(docs map[string]*indexedDoc) {
		for _, entry := range docs {
			if opts.Folder != "" && entry.info.Folder != opts.Folder {
				continue
			}
			for _, c := range entry.chunks {
				fn(c, entry.info.UploadedAt)
			}
		}
	})
}

func sortRanked(rs []Ranked) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Boosted != b.Boosted {
			return a.Boosted
		}
		if !a.UploadedAt.Equal(b.UploadedAt) {
			return a.UploadedAt.After(b.UploadedAt)
		}
		if a.Chunk.OriginName != b.Chunk.OriginName {
			return a.Chunk.OriginName < b.Chunk.OriginName
		}
		return a.Chunk.Sequence < b.Chunk.Sequence
	})
}

func limit(rs []Ranked, n int) []Ranked {
	if n > 0 && len(rs) > n {
		return rs[:n]
	}
	return rs
}
