// Package retrieval turns uploaded course files into scoped, citable chunks and
// assembles size-bounded context bundles for prompt construction.
package retrieval

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrExtractionFailed  = errors.New("no extractable text")
	ErrUploadTooLarge    = errors.New("upload exceeds size limit")
	ErrBudgetExceeded    = errors.New("budget below minimum bundle size")
	ErrInvalidScope      = errors.New("invalid scope")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidPolicy     = errors.New("invalid chunk policy")
	ErrScopeDropped      = errors.New("scope was dropped")
)

// FolderKind is the category a document was uploaded into.
type FolderKind string

const (
	Lecture      FolderKind = "lecture"
	PracticeTest FolderKind = "practice"
)

// ParseFolderKind accepts the folder names users type ("lecture", "practice",
// "practice_test", "tests").
func ParseFolderKind(s string) (FolderKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lecture", "lectures":
		return Lecture, true
	case "practice", "practice_test", "practice_tests", "practicetest", "test", "tests":
		return PracticeTest, true
	}
	return "", false
}

func (k FolderKind) Valid() bool {
	return k == Lecture || k == PracticeTest
}

// Title is the human form used in citation labels.
func (k FolderKind) Title() string {
	switch k {
	case Lecture:
		return "Lecture"
	case PracticeTest:
		return "Practice Test"
	}
	return string(k)
}

// RequestKind selects ranking and assembly behavior for a study request.
type RequestKind string

const (
	RequestLesson RequestKind = "lesson"
	RequestTest   RequestKind = "test"
	RequestAsk    RequestKind = "ask"
)

// Scope partitions every document, chunk and question bank entry by
// (user, subject). Nothing reads or writes across scopes.
type Scope struct {
	UserID  string
	Subject string
}

// NewScope normalizes the subject into its key form.
func NewScope(userID, subject string) Scope {
	return Scope{UserID: strings.TrimSpace(userID), Subject: SubjectKey(subject)}
}

// SubjectKey lower-cases a subject name and replaces spaces with underscores.
func SubjectKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func (s Scope) Valid() bool {
	return s.UserID != "" && s.Subject != ""
}

func (s Scope) String() string {
	return s.UserID + "/" + s.Subject
}

// Page is one extraction unit of a document. Plain-text files have a single
// page numbered 0, which means "no page information".
type Page struct {
	Number int
	Text   string
}

// Document is a normalized upload.
type Document struct {
	ID         string
	OriginName string
	Folder     FolderKind
	Pages      []Page
	UploadedAt time.Time
	Size       int
}

// RawText joins all pages with blank lines.
func (d Document) RawText() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Chunk is the unit of retrieval and citation. OriginName is a lookup key into
// the owning index, not an ownership reference.
type Chunk struct {
	OriginName string
	Folder     FolderKind
	Page       int
	Sequence   int
	Text       string
}

// QuestionEntry is a manually added question bank item.
type QuestionEntry struct {
	ID       uint
	Question string
	Answer   string
	AddedAt  time.Time
}

// Text renders the entry as it appears in a bundle.
func (q QuestionEntry) Text() string {
	if strings.TrimSpace(q.Answer) == "" {
		return "Q: " + strings.TrimSpace(q.Question)
	}
	return "Q: " + strings.TrimSpace(q.Question) + "\nA: " + strings.TrimSpace(q.Answer)
}
