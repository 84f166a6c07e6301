package search

import "strings"

const (
	// substringMultiplier applies to a term found literally in the field.
	substringMultiplier = 2.0

	// leadingBonusMultiplier is added when the field starts with the term.
	leadingBonusMultiplier = 0.5
)

// FieldScore is the relevance contribution of a single field.
type FieldScore struct {
	Score float64
	// MatchedTerms lists the terms that matched, in term order. A term
	// given twice is listed twice.
	MatchedTerms []string
}

// term pairs a search term with its normalized form.
type term struct {
	raw        string
	normalized string
}

func prepareTerms(terms []string) []term {
	prepared := make([]term, len(terms))
	for i, t := range terms {
		prepared[i] = term{raw: t, normalized: Normalize(t)}
	}
	return prepared
}

// ScoreField computes the weighted score of text against terms.
//
// Each matching term contributes weight, or twice the weight when the term
// appears literally in the normalized text. A field that starts with the
// term earns an extra half weight. Empty text scores zero.
func ScoreField(text string, terms []string, weight float64) FieldScore {
	if text == "" {
		return FieldScore{}
	}
	return scoreNormalized(Normalize(text), prepareTerms(terms), weight)
}

func scoreNormalized(text string, terms []term, weight float64) FieldScore {
	var fs FieldScore
	if text == "" {
		return fs
	}

	for _, t := range terms {
		if !matchNormalized(text, t.normalized) {
			continue
		}
		fs.MatchedTerms = append(fs.MatchedTerms, t.raw)

		if strings.Contains(text, t.normalized) {
			fs.Score += weight * substringMultiplier
		} else {
			fs.Score += weight
		}

		if strings.HasPrefix(text, t.normalized) {
			fs.Score += weight * leadingBonusMultiplier
		}
	}
	return fs
}
