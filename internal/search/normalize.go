package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningDiacritics is the Combining Diacritical Marks block (U+0300–U+036F).
var combiningDiacritics = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

// Normalize canonicalizes text for comparison: it lower-cases, decomposes
// accented characters and strips their combining marks, then trims
// surrounding whitespace. "Café " and "cafe" normalize to the same string.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	if isASCII(lower) {
		return strings.TrimSpace(lower)
	}

	// transform.Chain keeps internal state, so each call builds its own.
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningDiacritics)))
	result, _, err := transform.String(stripper, lower)
	if err != nil {
		result = lower
	}
	return strings.TrimSpace(result)
}

// ExtractTerms normalizes a query and splits it into whitespace-delimited
// terms. Order and duplicates are preserved.
func ExtractTerms(query string) []string {
	return strings.Fields(Normalize(query))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
