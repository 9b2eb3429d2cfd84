package retrieval

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// ItemKind tells bundle items apart.
type ItemKind string

const (
	ItemQuestion ItemKind = "question"
	ItemChunk    ItemKind = "chunk"
)

// BundleItem is one cited piece of context.
type BundleItem struct {
	Kind       ItemKind   `json:"kind"`
	Label      string     `json:"label"`
	Text       string     `json:"text"`
	OriginName string     `json:"origin_name,omitempty"`
	Folder     FolderKind `json:"folder,omitempty"`
	Page       int        `json:"page,omitempty"`
	Sequence   int        `json:"sequence,omitempty"`
	Score      float64    `json:"score,omitempty"`
}

// Size is the budget cost of the item in runes.
func (it BundleItem) Size() int {
	return utf8.RuneCountInString(it.Label) + utf8.RuneCountInString(it.Text)
}

// Bundle is the budget-bounded context handed to prompt construction.
type Bundle struct {
	Items  []BundleItem `json:"items"`
	Used   int          `json:"used"`
	Budget int          `json:"budget"`
	// Truncated is set when candidates were left out for lack of budget.
	Truncated bool `json:"truncated"`
	// Dropped counts the left-out candidates.
	Dropped int `json:"dropped"`
}

// Empty reports whether the bundle carries no content at all.
func (b *Bundle) Empty() bool {
	return b == nil || len(b.Items) == 0
}

// Chunks returns the chunk items of the bundle.
func (b *Bundle) Chunks() []BundleItem {
	if b == nil {
		return nil
	}
	var out []BundleItem
	for _, it := range b.Items {
		if it.Kind == ItemChunk {
			out = append(out, it)
		}
	}
	return out
}

// Questions returns the question bank items of the bundle.
func (b *Bundle) Questions() []BundleItem {
	if b == nil {
		return nil
	}
	var out []BundleItem
	for _, it := range b.Items {
		if it.Kind == ItemQuestion {
			out = append(out, it)
		}
	}
	return out
}

// AssemblerConfig bounds bundle construction.
type AssemblerConfig struct {
	// MinBudget is the smallest budget that can hold a citation label.
	MinBudget int
	// QuestionShare is the fraction of the budget reserved for question bank
	// entries. Whatever they leave unused goes to chunks.
	QuestionShare float64
}

func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{MinBudget: 32, QuestionShare: 0.4}
}

type Assembler struct {
	cfg AssemblerConfig
}

func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.MinBudget <= 0 {
		cfg.MinBudget = DefaultAssemblerConfig().MinBudget
	}
	if cfg.QuestionShare <= 0 || cfg.QuestionShare > 1 {
		cfg.QuestionShare = DefaultAssemblerConfig().QuestionShare
	}
	return &Assembler{cfg: cfg}
}

// Assemble builds a bundle of at most budget runes. Question bank entries go
// first in the order they were added, then ranked chunks in the given order.
// Items are atomic; each section stops at the first item that does not fit.
func (a *Assembler) Assemble(ranked []Ranked, entries []QuestionEntry, budget int) (*Bundle, error) {
	if budget < a.cfg.MinBudget {
		return nil, fmt.Errorf("assemble with budget %d (min %d): %w", budget, a.cfg.MinBudget, ErrBudgetExceeded)
	}

	b := &Bundle{Budget: budget}

	qs := make([]QuestionEntry, len(entries))
	copy(qs, entries)
	sort.SliceStable(qs, func(i, j int) bool {
		if !qs[i].AddedAt.Equal(qs[j].AddedAt) {
			return qs[i].AddedAt.Before(qs[j].AddedAt)
		}
		return qs[i].ID < qs[j].ID
	})

	questionBudget := int(float64(budget) * a.cfg.QuestionShare)
	for i, q := range qs {
		item := BundleItem{
			Kind:  ItemQuestion,
			Label: QuestionLabel(i + 1),
			Text:  q.Text(),
		}
		if b.Used+item.Size() > questionBudget {
			b.Truncated = true
			b.Dropped += len(qs) - i
			break
		}
		b.Items = append(b.Items, item)
		b.Used += item.Size()
	}

	for i, r := range ranked {
		item := BundleItem{
			Kind:       ItemChunk,
			Label:      CitationLabel(r.Chunk),
			Text:       r.Chunk.Text,
			OriginName: r.Chunk.OriginName,
			Folder:     r.Chunk.Folder,
			Page:       r.Chunk.Page,
			Sequence:   r.Chunk.Sequence,
			Score:      r.Score,
		}
		if b.Used+item.Size() > budget {
			b.Truncated = true
			b.Dropped += len(ranked) - i
			break
		}
		b.Items = append(b.Items, item)
		b.Used += item.Size()
	}
	return b, nil
}
