package retrieval

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultMinChunkRunes = 300
	defaultMaxChunkRunes = 1200
	paragraphSep         = "\n\n"
)

// ChunkPolicy bounds chunk sizes in runes.
type ChunkPolicy struct {
	MinRunes int
	MaxRunes int
}

// DefaultChunkPolicy returns the built-in bounds.
func DefaultChunkPolicy() ChunkPolicy {
	return ChunkPolicy{MinRunes: defaultMinChunkRunes, MaxRunes: defaultMaxChunkRunes}
}

func (p ChunkPolicy) Validate() error {
	if p.MaxRunes <= 0 {
		return fmt.Errorf("%w: max_runes must be > 0", ErrInvalidPolicy)
	}
	if p.MinRunes < 0 || p.MinRunes > p.MaxRunes {
		return fmt.Errorf("%w: min_runes must be within [0, max_runes]", ErrInvalidPolicy)
	}
	return nil
}

// Split cuts a document into chunks. Page boundaries always end a chunk so a
// chunk never spans pages. Inside a page, paragraphs accumulate until the
// chunk reaches MinRunes; a paragraph that would push the chunk past MaxRunes
// starts a new one; an oversized paragraph is packed by sentences, and a
// sentence longer than MaxRunes is cut at the last whitespace before the limit.
func (p ChunkPolicy) Split(doc Document) []Chunk {
	s := &splitter{policy: p, doc: doc}
	for _, page := range doc.Pages {
		s.page = page.Number
		for _, para := range strings.Split(page.Text, paragraphSep) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			s.addParagraph(para)
		}
		s.flush()
	}
	return s.chunks
}

type splitter struct {
	policy ChunkPolicy
	doc    Document
	page   int
	acc    strings.Builder
	accLen int
	chunks []Chunk
}

func (s *splitter) addParagraph(para string) {
	n := utf8.RuneCountInString(para)
	if s.accLen > 0 && s.accLen+len(paragraphSep)+n > s.policy.MaxRunes {
		s.flush()
	}
	if n > s.policy.MaxRunes {
		s.addOversized(para)
		return
	}
	s.appendText(para, n, paragraphSep)
	if s.accLen >= s.policy.MinRunes {
		s.flush()
	}
}

// addOversized packs sentences of a paragraph larger than MaxRunes. The last
// partial pack stays in the accumulator so it can merge with what follows.
func (s *splitter) addOversized(para string) {
	for _, sentence := range splitSentences(para) {
		for _, piece := range hardCut(sentence, s.policy.MaxRunes) {
			n := utf8.RuneCountInString(piece)
			if s.accLen > 0 && s.accLen+1+n > s.policy.MaxRunes {
				s.flush()
			}
			s.appendText(piece, n, " ")
		}
	}
}

func (s *splitter) appendText(text string, n int, sep string) {
	if s.accLen > 0 {
		s.acc.WriteString(sep)
		s.accLen += utf8.RuneCountInString(sep)
	}
	s.acc.WriteString(text)
	s.accLen += n
}

func (s *splitter) flush() {
	if s.accLen == 0 {
		return
	}
	s.chunks = append(s.chunks, Chunk{
		OriginName: s.doc.OriginName,
		Folder:     s.doc.Folder,
		Page:       s.page,
		Sequence:   len(s.chunks),
		Text:       s.acc.String(),
	})
	s.acc.Reset()
	s.accLen = 0
}

// splitSentences splits after '.', '!' or '?' runs followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && (isSentenceEnd(runes[j]) || isCloser(runes[j])) {
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			i = j - 1
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start:j])); sentence != "" {
			out = append(out, sentence)
		}
		start = j
		i = j - 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func isSentenceEnd(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isCloser(r rune) bool { return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’' }

// hardCut splits text into pieces of at most max runes, cutting at the last
// whitespace before the limit when there is one.
func hardCut(text string, max int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > max {
		cut := -1
		for i := max; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if cut <= 0 {
			cut = max
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			out = append(out, piece)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if piece := strings.TrimSpace(string(runes)); piece != "" {
		out = append(out, piece)
	}
	return out
}
