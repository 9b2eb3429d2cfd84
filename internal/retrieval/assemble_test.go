package retrieval

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func rankedChunks(n, textRunes int) []Ranked {
	out := make([]Ranked, n)
	for i := range out {
		out[i] = Ranked{
			Chunk: Chunk{
				OriginName: fmt.Sprintf("doc%d.txt", i),
				Folder:     Lecture,
				Text:       strings.Repeat("a", textRunes),
			},
			Score: float64(n - i),
		}
	}
	return out
}

func TestAssemble_BelowMinimumBudget(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MinBudget: 32})
	if _, err := a.Assemble(nil, nil, 31); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestAssemble_NeverExceedsBudget(t *testing.T) {
	a := NewAssembler(DefaultAssemblerConfig())
	ranked := rankedChunks(5, 100)
	itemSize := len(CitationLabel(ranked[0].Chunk)) + 100

	b, err := a.Assemble(ranked, nil, 2*itemSize+itemSize/2)
	if err != nil {
		t.Fatal(err)
	}
	if b.Used > b.Budget {
		t.Fatalf("used %d exceeds budget %d", b.Used, b.Budget)
	}
	if len(b.Items) != 2 || !b.Truncated || b.Dropped != 3 {
		t.Fatalf("items=%d truncated=%v dropped=%d", len(b.Items), b.Truncated, b.Dropped)
	}
	if b.Items[0].OriginName != "doc0.txt" || b.Items[1].OriginName != "doc1.txt" {
		t.Fatalf("items out of rank order: %+v", b.Items)
	}
}

func TestAssemble_StopsAtFirstItemThatDoesNotFit(t *testing.T) {
	a := NewAssembler(DefaultAssemblerConfig())
	ranked := rankedChunks(3, 50)
	ranked[1].Chunk.Text = strings.Repeat("b", 500)

	b, err := a.Assemble(ranked, nil, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Items) != 1 {
		t.Fatalf("a smaller lower-ranked chunk must not jump the queue, got %d items", len(b.Items))
	}
}

func TestAssemble_QuestionBankFirst(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MinBudget: 32, QuestionShare: 0.5})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []QuestionEntry{
		{ID: 2, Question: "What is osmosis?", AddedAt: base.Add(time.Minute)},
		{ID: 1, Question: "Define ATP", Answer: "Adenosine triphosphate", AddedAt: base},
	}

	b, err := a.Assemble(rankedChunks(2, 50), entries, 1000)
	if err != nil {
		t.Fatal(err)
	}
	qs := b.Questions()
	if len(qs) != 2 || len(b.Chunks()) != 2 {
		t.Fatalf("questions=%d chunks=%d", len(qs), len(b.Chunks()))
	}
	if b.Items[0].Kind != ItemQuestion || b.Items[1].Kind != ItemQuestion {
		t.Fatal("question bank entries must precede chunks")
	}
	if !strings.Contains(qs[0].Text, "Define ATP") || qs[0].Label != "Question bank #1" {
		t.Fatalf("questions not in added order: %+v", qs)
	}
	if !strings.Contains(qs[0].Text, "A: Adenosine triphosphate") {
		t.Fatalf("answer missing: %q", qs[0].Text)
	}
}

func TestAssemble_QuestionSubBudget(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MinBudget: 32, QuestionShare: 0.25})
	var entries []QuestionEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, QuestionEntry{ID: uint(i + 1), Question: strings.Repeat("q", 40)})
	}

	b, err := a.Assemble(rankedChunks(1, 50), entries, 400)
	if err != nil {
		t.Fatal(err)
	}
	used := 0
	for _, q := range b.Questions() {
		used += q.Size()
	}
	if used > 100 {
		t.Fatalf("questions used %d of a 100 rune share", used)
	}
	if len(b.Chunks()) != 1 {
		t.Fatal("chunks should still get the remaining budget")
	}
}

func TestAssemble_EmptyInputIsEmptyBundle(t *testing.T) {
	b, err := NewAssembler(DefaultAssemblerConfig()).Assemble(nil, nil, 500)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Empty() || b.Used != 0 || b.Truncated {
		t.Fatalf("expected an empty bundle, got %+v", b)
	}
}
