package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studybuddy/internal/bootstrap"
	"studybuddy/internal/config"
	"studybuddy/internal/prompt"
)

type fixture struct {
	d     *Dispatcher
	files map[string]string
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Mitochondria make ATP [Source: cells.txt]."}}]}`))
	}))
	t.Cleanup(llm.Close)

	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "bot.db")
	cfg.LLM.BaseURL = llm.URL
	cfg.LLM.MaxRetries = 0
	cfg.Retrieval.MinChunkRunes = 10
	cfg.Retrieval.MaxUploadBytes = 1 << 20

	a, err := bootstrap.New(context.Background(), cfg, bootstrap.NewLogger(cfg.Log, io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })

	f := &fixture{files: make(map[string]string), now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.d = NewDispatcher(DispatcherConfig{
		Subjects:  a.Subjects,
		Questions: a.Questions,
		Library:   a.Library,
		Study:     a.Study,
		Prefix:    "!",
		Fetch: func(ctx context.Context, url string, limit int) ([]byte, error) {
			body, ok := f.files[url]
			if !ok {
				return nil, fmt.Errorf("no file at %s", url)
			}
			return []byte(body), nil
		},
		Now: func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) send(t *testing.T, content string, attachments ...Attachment) string {
	t.Helper()
	replies := f.d.Handle(context.Background(), Message{UserID: "u1", ChannelID: "c1", Content: content, Attachments: attachments})
	return strings.Join(replies, "")
}

func TestDispatcherIgnoresNonCommands(t *testing.T) {
	f := newFixture(t)
	if got := f.send(t, "hello there"); got != "" {
		t.Fatalf("plain message answered: %q", got)
	}
	if got := f.send(t, "!dance"); got != "" {
		t.Fatalf("unknown command answered: %q", got)
	}
}

func TestDispatcherStudyFlow(t *testing.T) {
	f := newFixture(t)

	if got := f.send(t, "!teach genz cells"); !strings.Contains(got, "No active subject") {
		t.Fatalf("teach without subject: %q", got)
	}

	got := f.send(t, "!newsubject Pokemon Biology 101")
	if !strings.Contains(got, "**Biology 101**") || !strings.Contains(got, "**Pokemon**") || !strings.Contains(got, "now your active subject") {
		t.Fatalf("newsubject: %q", got)
	}
	if got := f.send(t, "!subjects"); !strings.Contains(got, "Biology 101 (active), game: Pokemon") {
		t.Fatalf("subjects: %q", got)
	}

	if got := f.send(t, "!upload lecture"); !strings.Contains(got, "attach") {
		t.Fatalf("upload without attachment: %q", got)
	}
	if got := f.send(t, "!upload notes"); !strings.Contains(got, "'lecture' or 'practice'") {
		t.Fatalf("upload with bad folder: %q", got)
	}
	f.files["https://cdn/cells.txt"] = "Mitochondria are the powerhouse of the cell and produce ATP."
	got = f.send(t, "!upload lecture", Attachment{Filename: "cells.txt", URL: "https://cdn/cells.txt", Size: 60})
	if !strings.Contains(got, "Uploaded cells.txt to Lecture (1 chunks)") {
		t.Fatalf("upload: %q", got)
	}
	got = f.send(t, "!upload lecture", Attachment{Filename: "huge.pdf", URL: "https://cdn/huge.pdf", Size: 2 << 20})
	if !strings.Contains(got, "huge.pdf: File too large (max 1 MB).") {
		t.Fatalf("oversized upload: %q", got)
	}

	if got := f.send(t, "!addq What is ATP? || Energy currency"); !strings.Contains(got, "Total questions: 1") {
		t.Fatalf("addq: %q", got)
	}
	if got := f.send(t, "!questions"); !strings.Contains(got, "#1 What is ATP?") {
		t.Fatalf("questions: %q", got)
	}
	got = f.send(t, "!active")
	if !strings.Contains(got, "Lectures: 1") || !strings.Contains(got, "Practice tests: 0") || !strings.Contains(got, "Question bank: 1") {
		t.Fatalf("active: %q", got)
	}
	if got := f.send(t, "!list"); !strings.Contains(got, "- cells.txt") || !strings.Contains(got, "No practice tests uploaded") {
		t.Fatalf("list: %q", got)
	}

	got = f.send(t, "!ask genz where does ATP come from?")
	if !strings.HasPrefix(got, "**Answer (Biology 101):**") || !strings.Contains(got, "Mitochondria make ATP") {
		t.Fatalf("ask: %q", got)
	}
	if got := f.send(t, "!maketest 3"); !strings.HasPrefix(got, "**Biology 101 - Practice Test:**") {
		t.Fatalf("maketest: %q", got)
	}
	if got := f.send(t, "!teach nosuchstyle"); !strings.Contains(got, "Mini-Lesson: nosuchstyle") {
		t.Fatalf("teach with default style: %q", got)
	}

	if got := f.send(t, "!removeq 2"); got != "Question not found!" {
		t.Fatalf("removeq out of range: %q", got)
	}
	if got := f.send(t, "!removeq 1"); !strings.Contains(got, "Removed question #1") {
		t.Fatalf("removeq: %q", got)
	}
}

func TestDispatcherDeleteConfirmation(t *testing.T) {
	f := newFixture(t)
	f.send(t, "!newsubject Chem")

	if got := f.send(t, "!deletesubject Chem"); !strings.Contains(got, "Type `yes` to confirm") {
		t.Fatalf("deletesubject: %q", got)
	}
	if got := f.send(t, "no"); got != "Cancelled deletion." {
		t.Fatalf("cancel: %q", got)
	}

	f.send(t, "!deletesubject Chem")
	f.now = f.now.Add(31 * time.Second)
	if got := f.send(t, "yes"); got != "" {
		t.Fatalf("expired confirmation answered: %q", got)
	}
	if got := f.send(t, "!subjects"); !strings.Contains(got, "Chem (active)") {
		t.Fatalf("subject deleted after timeout: %q", got)
	}

	f.send(t, "!deletesubject Chem")
	if got := f.send(t, "YES"); got != "Deleted **Chem** and all its files." {
		t.Fatalf("confirm: %q", got)
	}
	if got := f.send(t, "!subjects"); !strings.Contains(got, "don't have any subjects") {
		t.Fatalf("subjects after delete: %q", got)
	}

	f.send(t, "!deletesubject Ghost")
	if got := f.send(t, "yes"); !strings.Contains(got, "Subject not found") {
		t.Fatalf("delete missing subject: %q", got)
	}
}

func TestDispatcherSetGame(t *testing.T) {
	f := newFixture(t)
	f.send(t, "!newsubject Physics")
	if got := f.send(t, "!setgame Zelda"); got != "Set **Physics** mnemonic game to: **Zelda**" {
		t.Fatalf("setgame: %q", got)
	}
	if got := f.send(t, "!setgame"); !strings.Contains(got, "Current game for **Physics**: **Zelda**") {
		t.Fatalf("setgame show: %q", got)
	}
	if got := f.send(t, "!switch Nope"); !strings.Contains(got, "Subject not found") {
		t.Fatalf("switch missing: %q", got)
	}
}

func TestSplitStyle(t *testing.T) {
	f := newFixture(t)
	style, topic := f.d.splitStyle("GenZ cellular respiration")
	if style != "genz" || topic != "cellular respiration" {
		t.Fatalf("got %q %q", style, topic)
	}
	style, topic = f.d.splitStyle("cellular respiration")
	if style != prompt.DefaultStyle || topic != "cellular respiration" {
		t.Fatalf("got %q %q", style, topic)
	}
	if !strings.Contains(f.d.listStyles(), "**genz**") {
		t.Fatal("styles listing missing genz")
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("got %q", got)
	}

	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, fmt.Sprintf("line %02d of the answer", i))
	}
	msg := strings.Join(lines, "\n")
	parts := splitMessage(msg, 100)
	if len(parts) < 2 {
		t.Fatalf("expected several parts, got %d", len(parts))
	}
	for i, p := range parts {
		if n := len([]rune(p)); n > 100 {
			t.Fatalf("part %d has %d runes", i, n)
		}
		if i < len(parts)-1 && !strings.HasSuffix(p, "\n") {
			t.Fatalf("part %d not cut at a newline: %q", i, p)
		}
	}
	if strings.Join(parts, "") != msg {
		t.Fatal("parts do not rebuild the message")
	}

	long := strings.Repeat("é", 250)
	parts = splitMessage(long, 100)
	if len(parts) != 3 || strings.Join(parts, "") != long {
		t.Fatalf("unbroken text split into %d parts", len(parts))
	}
}

func TestHTTPFetcherLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 64)))
	}))
	defer srv.Close()

	fetch := HTTPFetcher(srv.Client())
	if raw, err := fetch(context.Background(), srv.URL, 64); err != nil || len(raw) != 64 {
		t.Fatalf("fetch at limit: %d bytes, %v", len(raw), err)
	}
	if _, err := fetch(context.Background(), srv.URL, 63); err == nil {
		t.Fatal("expected size error")
	}
}
