package retrieval

import (
	"errors"
	"strings"
	"testing"
	"time"

	"studybuddy/internal/pkg/pdfextract/pdftest"
)

func fixedNow() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestNormalize_PlainText(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{Now: fixedNow})
	raw := []byte("Cells are the unit of life.\r\n\r\n\r\n\r\nMitochondria make ATP.   \n")

	doc, err := n.Normalize(raw, "uploads/bio101.txt", Lecture)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if doc.OriginName != "bio101.txt" {
		t.Fatalf("origin = %q, want bio101.txt", doc.OriginName)
	}
	if doc.ID == "" {
		t.Fatal("expected a document id")
	}
	if !doc.UploadedAt.Equal(fixedNow()) {
		t.Fatalf("uploaded_at = %v", doc.UploadedAt)
	}
	if len(doc.Pages) != 1 || doc.Pages[0].Number != 0 {
		t.Fatalf("expected one unnumbered page, got %+v", doc.Pages)
	}
	want := "Cells are the unit of life.\n\nMitochondria make ATP."
	if doc.Pages[0].Text != want {
		t.Fatalf("text = %q, want %q", doc.Pages[0].Text, want)
	}
	if doc.Size != len(raw) {
		t.Fatalf("size = %d, want %d", doc.Size, len(raw))
	}
}

func TestNormalize_SniffsTextWithoutExtension(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	doc, err := n.Normalize([]byte("plain notes about enzymes"), "NOTES", PracticeTest)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if doc.Folder != PracticeTest {
		t.Fatalf("folder = %q", doc.Folder)
	}
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	_, err := n.Normalize(png, "diagram.png", Lecture)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalize_InvalidUTF8Text(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	_, err := n.Normalize([]byte{'a', 0xff, 0xfe, 'b'}, "notes.txt", Lecture)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalize_UnknownFolder(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	_, err := n.Normalize([]byte("text"), "notes.txt", FolderKind("homework"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalize_TooLarge(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{MaxUploadBytes: 10})
	_, err := n.Normalize([]byte(strings.Repeat("a", 11)), "big.txt", Lecture)
	if !errors.Is(err, ErrUploadTooLarge) {
		t.Fatalf("expected ErrUploadTooLarge, got %v", err)
	}
}

func TestNormalize_EmptyTextIsExtractionFailure(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	_, err := n.Normalize([]byte("  \n\n\t ...  \n"), "empty.txt", Lecture)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestNormalize_BrokenPDFLeavesIndexUntouched(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	reg, err := NewRegistry(DefaultChunkPolicy())
	if err != nil {
		t.Fatal(err)
	}
	scope := NewScope("u1", "Biology")

	good, err := n.Normalize([]byte("Mitochondria are the powerhouse of the cell."), "bio.txt", Lecture)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Insert(scope, good); err != nil {
		t.Fatal(err)
	}
	before := reg.LookupAll(scope)

	_, err = n.Normalize([]byte("%PDF-1.4 this is not really a pdf"), "scan.pdf", Lecture)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}

	after := reg.LookupAll(scope)
	if len(after) != len(before) || after[0].Text != before[0].Text {
		t.Fatalf("index changed after failed upload: %+v", after)
	}
}

func TestNormalize_PDFPagesBecomePageLabels(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	raw := pdftest.Build("Mitochondria make ATP for the cell.", "Second page about ribosomes.")

	doc, err := n.Normalize(raw, "bio101.pdf", Lecture)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Pages) != 2 || doc.Pages[0].Number != 1 || doc.Pages[1].Number != 2 {
		t.Fatalf("pages = %+v", doc.Pages)
	}
	if !strings.Contains(doc.Pages[0].Text, "Mitochondria") || !strings.Contains(doc.Pages[1].Text, "ribosomes") {
		t.Fatalf("page text = %+v", doc.Pages)
	}

	reg, err := NewRegistry(DefaultChunkPolicy())
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := reg.Insert(NewScope("u1", "Biology"), doc)
	if err != nil {
		t.Fatal(err)
	}
	var labels []string
	for _, c := range chunks {
		labels = append(labels, CitationLabel(c))
	}
	if got := strings.Join(labels, "|"); got != "bio101.pdf (Lecture, p. 1)|bio101.pdf (Lecture, p. 2)" {
		t.Fatalf("labels = %q", got)
	}
}

func TestNormalize_ImageOnlyPDFLeavesIndexUntouched(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	reg, err := NewRegistry(DefaultChunkPolicy())
	if err != nil {
		t.Fatal(err)
	}
	scope := NewScope("u1", "Biology")
	good, err := n.Normalize(pdftest.Build("Mitochondria are the powerhouse of the cell."), "bio101.pdf", Lecture)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Insert(scope, good); err != nil {
		t.Fatal(err)
	}
	before := reg.LookupAll(scope)

	_, err = n.Normalize(pdftest.Build("", ""), "scan.pdf", Lecture)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}

	after := reg.LookupAll(scope)
	if len(after) != len(before) || after[0].Text != before[0].Text || after[0].OriginName != "bio101.pdf" {
		t.Fatalf("index changed after failed upload: %+v", after)
	}
}

func TestParseFolderKind(t *testing.T) {
	cases := map[string]FolderKind{
		"lecture":       Lecture,
		" Lectures ":    Lecture,
		"practice":      PracticeTest,
		"practice_test": PracticeTest,
		"tests":         PracticeTest,
	}
	for in, want := range cases {
		got, ok := ParseFolderKind(in)
		if !ok || got != want {
			t.Errorf("ParseFolderKind(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseFolderKind("homework"); ok {
		t.Error("homework should not parse")
	}
}

func TestNewScope_SubjectKey(t *testing.T) {
	s := NewScope(" 42 ", "  Organic Chemistry ")
	if s.UserID != "42" || s.Subject != "organic_chemistry" {
		t.Fatalf("scope = %+v", s)
	}
	if !s.Valid() {
		t.Fatal("scope should be valid")
	}
	if NewScope("42", "  ").Valid() {
		t.Fatal("blank subject should be invalid")
	}
}
