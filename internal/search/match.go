package search

import "strings"

// Matches reports whether term occurs in text. Both are normalized first,
// so matching ignores case and accents. A term matches when it is a
// substring of the text or a prefix of any of its words; there is no
// stemming or typo tolerance.
func Matches(text, term string) bool {
	normalizedTerm := Normalize(term)
	if normalizedTerm == "" {
		return false
	}
	return matchNormalized(Normalize(text), normalizedTerm)
}

// matchNormalized is Matches over already-normalized inputs.
func matchNormalized(text, term string) bool {
	if term == "" {
		return false
	}
	if strings.Contains(text, term) {
		return true
	}

	// Word-level fallback for partial terms
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, term) || strings.Contains(word, term) {
			return true
		}
	}
	return false
}
