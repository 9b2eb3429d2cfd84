package retrieval

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CitationLabel formats the provenance of a chunk. It depends only on the
// chunk's attributes.
//
//	bio101.pdf (Lecture, p. 3)
//	notes.txt (Lecture, part 2)
func CitationLabel(c Chunk) string {
	if c.Page > 0 {
		return fmt.Sprintf("%s (%s, p. %d)", c.OriginName, c.Folder.Title(), c.Page)
	}
	return fmt.Sprintf("%s (%s, part %d)", c.OriginName, c.Folder.Title(), c.Sequence+1)
}

// QuestionLabel labels the n-th (1-based) question bank entry.
func QuestionLabel(n int) string {
	return fmt.Sprintf("Question bank #%d", n)
}

var sourceTagRe = regexp.MustCompile(`(?i)\[\s*source\s*:\s*([^\]]+?)\s*\]`)

// CitationReport classifies the [Source: X] tags of a generated response.
type CitationReport struct {
	// Verified holds bundle labels cited by the response, in bundle order.
	Verified []string `json:"verified"`
	// Unknown holds cited sources that match nothing in the bundle.
	Unknown []string `json:"unknown"`
	// Uncited holds bundle chunk labels the response never cites.
	Uncited []string `json:"uncited"`
}

// VerifyCitations matches the citations in text against the bundle. A tag
// matches an item when it equals the item's label, or names the item's origin
// file with or without its extension.
func VerifyCitations(b *Bundle, text string) CitationReport {
	var report CitationReport
	if b == nil {
		b = &Bundle{}
	}
	cited := make(map[int]struct{})
	unknown := make(map[string]struct{})

	for _, m := range sourceTagRe.FindAllStringSubmatch(text, -1) {
		for _, tag := range strings.Split(m[1], ";") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			matched := false
			for i, item := range b.Items {
				if item.matches(tag) {
					cited[i] = struct{}{}
					matched = true
				}
			}
			if !matched {
				unknown[tag] = struct{}{}
			}
		}
	}

	seenLabel := make(map[string]struct{})
	for i, item := range b.Items {
		_, ok := cited[i]
		if ok {
			if _, dup := seenLabel[item.Label]; !dup {
				report.Verified = append(report.Verified, item.Label)
				seenLabel[item.Label] = struct{}{}
			}
			continue
		}
		if item.Kind == ItemChunk {
			report.Uncited = append(report.Uncited, item.Label)
		}
	}
	for tag := range unknown {
		report.Unknown = append(report.Unknown, tag)
	}
	sort.Strings(report.Unknown)
	return report
}

func (it BundleItem) matches(tag string) bool {
	t := strings.ToLower(strings.TrimSpace(tag))
	if t == strings.ToLower(it.Label) {
		return true
	}
	if it.Kind != ItemChunk || it.OriginName == "" {
		return false
	}
	origin := strings.ToLower(it.OriginName)
	stem := strings.TrimSuffix(origin, strings.ToLower(extOf(it.OriginName)))
	return t == origin || t == stem
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}

// Annotate appends verified sources and unverified citations to text.
func Annotate(text string, report CitationReport) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(text, "\n "))
	if len(report.Verified) > 0 {
		sb.WriteString("\n\nSources: ")
		sb.WriteString(strings.Join(report.Verified, "; "))
	}
	if len(report.Unknown) > 0 {
		sb.WriteString("\nUnverified citations: ")
		sb.WriteString(strings.Join(report.Unknown, "; "))
	}
	return sb.String()
}
