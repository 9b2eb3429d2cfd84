package retrieval

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func textDoc(origin string, folder FolderKind, pages ...string) Document {
	doc := Document{ID: origin, OriginName: origin, Folder: folder, UploadedAt: fixedNow()}
	for i, p := range pages {
		num := 0
		if len(pages) > 1 {
			num = i + 1
		}
		doc.Pages = append(doc.Pages, Page{Number: num, Text: p})
	}
	return doc
}

func paragraph(word string, words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = word
	}
	return strings.Join(parts, " ") + "."
}

func TestChunkPolicy_Validate(t *testing.T) {
	if err := DefaultChunkPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	bad := []ChunkPolicy{{MinRunes: 10, MaxRunes: 0}, {MinRunes: 200, MaxRunes: 100}, {MinRunes: -1, MaxRunes: 10}}
	for _, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrInvalidPolicy) {
			t.Errorf("%+v: expected ErrInvalidPolicy, got %v", p, err)
		}
	}
}

func TestSplit_RespectsMaxAndKeepsWords(t *testing.T) {
	policy := ChunkPolicy{MinRunes: 50, MaxRunes: 120}
	var paras []string
	for i := 0; i < 8; i++ {
		paras = append(paras, paragraph("cell", 5+i*4))
	}
	doc := textDoc("bio.txt", Lecture, strings.Join(paras, "\n\n"))

	chunks := policy.Split(doc)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	var joined []string
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > policy.MaxRunes {
			t.Errorf("chunk %d has %d runes, max %d", i, n, policy.MaxRunes)
		}
		if c.Sequence != i {
			t.Errorf("chunk %d has sequence %d", i, c.Sequence)
		}
		if c.OriginName != "bio.txt" || c.Folder != Lecture {
			t.Errorf("chunk %d lost provenance: %+v", i, c)
		}
		joined = append(joined, c.Text)
	}
	if got, want := strings.Fields(strings.Join(joined, " ")), strings.Fields(doc.RawText()); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatal("chunks do not reproduce the document text")
	}
}

func TestSplit_SmallParagraphsMergeUntilMin(t *testing.T) {
	policy := ChunkPolicy{MinRunes: 40, MaxRunes: 200}
	doc := textDoc("notes.txt", Lecture, "One short line.\n\nAnother short line.\n\nA third short line here.\n\nLast.")

	chunks := policy.Split(doc)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0].Text, "One short line.\n\nAnother short line.") {
		t.Fatalf("first chunk = %q", chunks[0].Text)
	}
	if chunks[1].Text != "Last." {
		t.Fatalf("trailing chunk = %q", chunks[1].Text)
	}
}

func TestSplit_PageBoundaryEndsChunk(t *testing.T) {
	doc := textDoc("bio101.pdf", Lecture, "Alpha page one.", "Beta page two.")

	chunks := DefaultChunkPolicy().Split(doc)
	if len(chunks) != 2 {
		t.Fatalf("expected one chunk per page, got %d", len(chunks))
	}
	if chunks[0].Page != 1 || chunks[1].Page != 2 {
		t.Fatalf("pages = %d, %d", chunks[0].Page, chunks[1].Page)
	}
	if chunks[1].Sequence != 1 {
		t.Fatalf("sequence should run across pages, got %d", chunks[1].Sequence)
	}
}

func TestSplit_OversizedParagraphPackedBySentence(t *testing.T) {
	policy := ChunkPolicy{MinRunes: 20, MaxRunes: 60}
	para := "The cell membrane controls transport. Mitochondria produce energy for the cell. " +
		"Ribosomes build proteins from amino acids. The nucleus stores genetic information."
	chunks := policy.Split(textDoc("bio.txt", Lecture, para))

	if len(chunks) < 3 {
		t.Fatalf("expected the paragraph to be split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if utf8.RuneCountInString(c.Text) > policy.MaxRunes {
			t.Fatalf("chunk too long: %q", c.Text)
		}
		if !strings.HasSuffix(c.Text, ".") {
			t.Fatalf("expected sentence-aligned chunk, got %q", c.Text)
		}
	}
}

func TestSplit_UnbrokenRunIsHardCut(t *testing.T) {
	policy := ChunkPolicy{MinRunes: 10, MaxRunes: 120}
	chunks := policy.Split(textDoc("dna.txt", Lecture, strings.Repeat("x", 300)))

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		n := utf8.RuneCountInString(c.Text)
		if n > policy.MaxRunes {
			t.Fatalf("chunk has %d runes", n)
		}
		total += n
	}
	if total != 300 {
		t.Fatalf("lost text: %d runes kept", total)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences(`He said "stop." Then left! Version 1.2 is out? Yes`)
	want := []string{`He said "stop."`, "Then left!", "Version 1.2 is out?", "Yes"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}
