package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/sha1n/mcp-promptdex-server/internal/domain"
)

const (
	// DefaultMinScore is the lowest normalized score kept in results.
	DefaultMinScore = 0.1

	// DefaultMaxResults caps the number of ranked results.
	DefaultMaxResults = 100

	// DefaultNormalizationWeight is the per-term divisor applied to a
	// record's total score. It equals the default title weight.
	DefaultNormalizationWeight = 3.0
)

// Weights holds the relevance multiplier of each searchable prompt field.
type Weights struct {
	Title           float64
	GeneratedPrompt float64
	Description     float64
	Product         float64
	Epic            float64
}

// DefaultWeights returns the standard field weights, biased toward titles.
func DefaultWeights() Weights {
	return Weights{
		Title:           3,
		GeneratedPrompt: 2.5,
		Description:     2,
		Product:         1.5,
		Epic:            1.5,
	}
}

// Config configures an Engine.
type Config struct {
	Weights Weights

	// NormalizationWeight scales the total score per query term. It is not
	// derived from Weights; changing either changes absolute scores.
	NormalizationWeight float64

	MinScore   float64
	MaxResults int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights(),
		NormalizationWeight: DefaultNormalizationWeight,
		MinScore:            DefaultMinScore,
		MaxResults:          DefaultMaxResults,
	}
}

// Options tunes a single search. Zero values fall back to the engine
// configuration. A negative MinScore disables the threshold and a negative
// MaxResults disables the cap.
type Options struct {
	MinScore   float64
	MaxResults int
}

// Result is a ranked prompt together with its match bookkeeping.
type Result struct {
	Prompt domain.Prompt

	// Score is the total field score divided by the number of terms times
	// the normalization weight. It may exceed 1.
	Score float64

	// MatchedFields and MatchedTerms are deduplicated, in first-seen order.
	MatchedFields []string
	MatchedTerms  []string
}

type field struct {
	name   string
	weight float64
	value  func(*domain.Prompt) string
}

// Engine ranks prompts against free-text queries. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	cfg    Config
	fields []field
}

// NewEngine creates an engine. Zero-valued settings in cfg take their
// defaults; field weights are used as given.
func NewEngine(cfg Config) *Engine {
	if cfg.NormalizationWeight <= 0 {
		cfg.NormalizationWeight = DefaultNormalizationWeight
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	return &Engine{
		cfg: cfg,
		fields: []field{
			{domain.PromptFieldTitle, cfg.Weights.Title, func(p *domain.Prompt) string { return p.Title }},
			{domain.PromptFieldGeneratedPrompt, cfg.Weights.GeneratedPrompt, func(p *domain.Prompt) string { return p.GeneratedPrompt }},
			{domain.PromptFieldDescription, cfg.Weights.Description, func(p *domain.Prompt) string { return p.Description }},
			{domain.PromptFieldProduct, cfg.Weights.Product, func(p *domain.Prompt) string { return p.ProductName }},
			{domain.PromptFieldEpic, cfg.Weights.Epic, func(p *domain.Prompt) string { return p.EpicName }},
		},
	}
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Search ranks prompts by relevance to query.
//
// An empty query returns every prompt with score 1 in input order. Otherwise
// prompts scoring below the minimum are dropped and the rest are sorted by
// descending score, ties keeping input order, and capped.
func (e *Engine) Search(prompts []domain.Prompt, query string, opts Options) []Result {
	if strings.TrimSpace(query) == "" {
		results := make([]Result, len(prompts))
		for i, p := range prompts {
			results[i] = Result{
				Prompt:        p,
				Score:         1,
				MatchedFields: []string{},
				MatchedTerms:  []string{},
			}
		}
		return results
	}

	terms := prepareTerms(ExtractTerms(query))
	if len(terms) == 0 {
		return []Result{}
	}

	minScore := cmp.Or(opts.MinScore, e.cfg.MinScore)
	maxResults := cmp.Or(opts.MaxResults, e.cfg.MaxResults)
	divisor := float64(len(terms)) * e.cfg.NormalizationWeight

	results := []Result{}
	for i := range prompts {
		total, matchedFields, matchedTerms := e.scorePrompt(&prompts[i], terms)
		score := total / divisor
		if score < minScore {
			continue
		}
		results = append(results, Result{
			Prompt:        prompts[i],
			Score:         score,
			MatchedFields: matchedFields,
			MatchedTerms:  matchedTerms,
		})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// Score evaluates a single prompt against query without applying the
// threshold. An empty query, or one without terms, scores zero.
func (e *Engine) Score(p domain.Prompt, query string) Result {
	r := Result{Prompt: p, MatchedFields: []string{}, MatchedTerms: []string{}}

	terms := prepareTerms(ExtractTerms(query))
	if len(terms) == 0 {
		return r
	}

	total, matchedFields, matchedTerms := e.scorePrompt(&p, terms)
	r.Score = total / (float64(len(terms)) * e.cfg.NormalizationWeight)
	r.MatchedFields = matchedFields
	r.MatchedTerms = matchedTerms
	return r
}

// scorePrompt sums the field scores of p and collects what matched.
func (e *Engine) scorePrompt(p *domain.Prompt, terms []term) (float64, []string, []string) {
	var total float64
	matchedFields := []string{}
	matchedTerms := []string{}
	seenTerms := make(map[string]struct{}, len(terms))

	for _, f := range e.fields {
		text := f.value(p)
		if text == "" {
			continue
		}

		fs := scoreNormalized(Normalize(text), terms, f.weight)
		total += fs.Score
		if len(fs.MatchedTerms) == 0 {
			continue
		}

		matchedFields = append(matchedFields, f.name)
		for _, t := range fs.MatchedTerms {
			if _, ok := seenTerms[t]; ok {
				continue
			}
			seenTerms[t] = struct{}{}
			matchedTerms = append(matchedTerms, t)
		}
	}
	return total, matchedFields, matchedTerms
}

// Search ranks prompts with the default engine configuration.
func Search(prompts []domain.Prompt, query string, opts Options) []Result {
	return NewEngine(DefaultConfig()).Search(prompts, query, opts)
}
