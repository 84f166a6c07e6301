package search

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

const (
	// MarkOpen and MarkClose delimit highlighted matches.
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
)

// Highlight wraps every case-insensitive occurrence of each term in text
// with <mark> tags.
func Highlight(text string, terms []string) string {
	return HighlightWith(text, terms, MarkOpen, MarkClose)
}

// HighlightWith wraps every case-insensitive occurrence of each term in text
// with the given delimiters. Terms are matched literally against the
// original text: accents are significant here, unlike in Matches. Invalid
// UTF-8 is dropped from terms, and terms that normalize to nothing are
// skipped.
//
// All terms are matched in a single pass, so inserted delimiters are never
// matched again. Where terms overlap, the longest one starting at a position
// wins.
func HighlightWith(text string, terms []string, open, close string) string {
	if text == "" || len(terms) == 0 {
		return text
	}

	var patterns []string
	for _, t := range terms {
		t = strings.ToValidUTF8(t, "")
		if Normalize(t) == "" {
			continue
		}
		patterns = append(patterns, regexp.QuoteMeta(t))
	}
	if len(patterns) == 0 {
		return text
	}

	// Alternation is leftmost-first; longer terms go first
	slices.SortStableFunc(patterns, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})

	re, err := regexp.Compile("(?i)(?:" + strings.Join(patterns, "|") + ")")
	if err != nil {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return open + m + close
	})
}
