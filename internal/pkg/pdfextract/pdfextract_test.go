package pdfextract

import (
	"errors"
	"strings"
	"testing"

	"studybuddy/internal/pkg/pdfextract/pdftest"
)

func TestExtractPages(t *testing.T) {
	raw := pdftest.Build("Mitochondria make ATP for the cell.", "Second page about ribosomes.")
	pages, err := ExtractPages(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if pages[0].Number != 1 || !strings.Contains(pages[0].Text, "Mitochondria make ATP") {
		t.Fatalf("page 1 = %+v", pages[0])
	}
	if pages[1].Number != 2 || !strings.Contains(pages[1].Text, "ribosomes") {
		t.Fatalf("page 2 = %+v", pages[1])
	}
}

func TestExtractPages_EmptyPageKeepsNumbering(t *testing.T) {
	pages, err := ExtractPages(pdftest.Build("", "Only the second page has text."))
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || strings.TrimSpace(pages[0].Text) != "" || pages[1].Number != 2 {
		t.Fatalf("pages = %+v", pages)
	}
}

func TestExtractPages_BadInput(t *testing.T) {
	if _, err := ExtractPages(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("got %v, want ErrEmptyInput", err)
	}
	if _, err := ExtractPages([]byte("%PDF-1.4 truncated")); err == nil {
		t.Fatal("expected an error for a truncated pdf")
	}
}
