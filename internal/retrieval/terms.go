package retrieval

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into",
		"about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "should", "now", "what", "which", "who", "whom",
		"how", "why", "when", "where", "do", "does", "did", "me", "my", "i", "you", "your", "we", "our",
		"explain", "tell", "describe",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Terms tokenizes a free-text query into normalized, de-duplicated search
// terms in first-seen order. Stopwords are dropped.
func Terms(query string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(query), -1) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		term := normalizeTerm(tok)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// normalizeTerm lower-cases and applies light suffix stripping so "cells" and
// "cell" match.
func normalizeTerm(tok string) string {
	t := strings.ToLower(strings.TrimSpace(tok))
	t = strings.TrimSuffix(t, "'s")
	t = strings.TrimSuffix(t, "’s")
	switch {
	case len(t) > 4 && strings.HasSuffix(t, "ies"):
		return t[:len(t)-3] + "y"
	case len(t) > 4 && (strings.HasSuffix(t, "ses") || strings.HasSuffix(t, "xes") || strings.HasSuffix(t, "ches") || strings.HasSuffix(t, "shes")):
		return t[:len(t)-2]
	case len(t) > 3 && strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss") && !strings.HasSuffix(t, "us") && !strings.HasSuffix(t, "is"):
		return t[:len(t)-1]
	}
	return t
}

// termCounts counts normalized tokens of text.
func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		counts[normalizeTerm(tok)]++
	}
	return counts
}
