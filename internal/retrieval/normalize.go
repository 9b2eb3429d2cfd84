package retrieval

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"studybuddy/internal/pkg/pdfextract"
)

const defaultMaxUploadBytes = 10 << 20

type format int

const (
	formatUnknown format = iota
	formatText
	formatPDF
)

var (
	textExtensions = map[string]struct{}{".txt": {}, ".text": {}, ".md": {}, ".markdown": {}}
	pdfMagic       = []byte("%PDF-")
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
)

// NormalizerConfig configures upload normalization.
type NormalizerConfig struct {
	MaxUploadBytes int
	Now            func() time.Time
}

// Normalizer converts raw uploads into Documents. It has no side effects; the
// caller decides when the result is indexed.
type Normalizer struct {
	maxBytes int
	now      func() time.Time
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Normalizer{maxBytes: cfg.MaxUploadBytes, now: cfg.Now}
}

// MaxUploadBytes reports the configured size cap.
func (n *Normalizer) MaxUploadBytes() int { return n.maxBytes }

// Normalize detects the format of raw, extracts its text and returns a
// Document. A recognized file with no usable text fails with
// ErrExtractionFailed rather than producing an empty Document.
func (n *Normalizer) Normalize(raw []byte, filename string, folder FolderKind) (Document, error) {
	origin := filepath.Base(strings.TrimSpace(filename))
	if origin == "." || origin == "/" || origin == "" {
		return Document{}, fmt.Errorf("%w: missing file name", ErrUnsupportedFormat)
	}
	if !folder.Valid() {
		return Document{}, fmt.Errorf("unknown folder kind %q: %w", folder, ErrUnsupportedFormat)
	}
	if len(raw) > n.maxBytes {
		return Document{}, fmt.Errorf("%s is %d bytes (max %d): %w", origin, len(raw), n.maxBytes, ErrUploadTooLarge)
	}

	var pages []Page
	switch detectFormat(raw, origin) {
	case formatPDF:
		extracted, err := pdfextract.ExtractPages(raw)
		if err != nil {
			return Document{}, fmt.Errorf("%s: %v: %w", origin, err, ErrExtractionFailed)
		}
		pages = make([]Page, 0, len(extracted))
		for _, p := range extracted {
			pages = append(pages, Page{Number: p.Number, Text: cleanText(p.Text)})
		}
	case formatText:
		if !utf8.Valid(raw) {
			return Document{}, fmt.Errorf("%s is not valid UTF-8 text: %w", origin, ErrUnsupportedFormat)
		}
		pages = []Page{{Number: 0, Text: cleanText(string(raw))}}
	default:
		return Document{}, fmt.Errorf("%s: %w", origin, ErrUnsupportedFormat)
	}

	if !hasUsableText(pages) {
		return Document{}, fmt.Errorf("%s: %w", origin, ErrExtractionFailed)
	}

	return Document{
		ID:         uuid.NewString(),
		OriginName: origin,
		Folder:     folder,
		Pages:      pages,
		UploadedAt: n.now(),
		Size:       len(raw),
	}, nil
}

func detectFormat(raw []byte, origin string) format {
	ext := strings.ToLower(filepath.Ext(origin))
	isPDF := bytes.HasPrefix(bytes.TrimLeft(raw, "\x00\t\r\n "), pdfMagic)
	switch {
	case ext == ".pdf":
		// a .pdf that is not a PDF still goes to the extractor so the failure
		// is reported as an extraction problem
		return formatPDF
	case isPDF:
		return formatPDF
	}
	if _, ok := textExtensions[ext]; ok {
		return formatText
	}
	if len(raw) == 0 {
		return formatUnknown
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return formatUnknown
	}
	if strings.HasPrefix(http.DetectContentType(raw), "text/plain") {
		return formatText
	}
	return formatUnknown
}

// cleanText normalizes line endings, drops control characters and trailing
// spaces, and collapses runs of blank lines so paragraph boundaries are a
// single "\n\n".
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	s = strings.Join(lines, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func hasUsableText(pages []Page) bool {
	for _, p := range pages {
		for _, r := range p.Text {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return true
			}
		}
	}
	return false
}
