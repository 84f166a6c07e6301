package catalog

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/mcp-promptdex-server/internal/domain"
	"github.com/sha1n/mcp-promptdex-server/internal/search"
)

const (
	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 100

	// FoldingAnalyzer is the name of the case- and accent-folding analyzer
	FoldingAnalyzer = "promptdex_folding"
)

// promptDocument is the indexed projection of a prompt.
type promptDocument struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	GeneratedPrompt string `json:"generated_prompt"`
	Description     string `json:"description"`
	Product         string `json:"product"`
	Epic            string `json:"epic"`
	Status          string `json:"status"`
}

func newPromptDocument(p domain.Prompt) promptDocument {
	return promptDocument{
		ID:              p.ID,
		Title:           p.Title,
		GeneratedPrompt: p.GeneratedPrompt,
		Description:     p.Description,
		Product:         p.ProductName,
		Epic:            p.EpicName,
		Status:          p.Status,
	}
}

// Hit is a single full-text match.
type Hit struct {
	ID    string
	Score float64
}

// Indexer builds in-memory Bleve indexes over prompts.
type Indexer struct {
	weights search.Weights
}

// NewIndexer creates an indexer that boosts fields by the given weights.
func NewIndexer(weights search.Weights) *Indexer {
	return &Indexer{weights: weights}
}

// CreateIndexMapping creates the Bleve index mapping for prompt documents.
func CreateIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(FoldingAnalyzer, map[string]any{
		"type":          custom.Name,
		"char_filters":  []string{asciifolding.Name},
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	// Searchable text fields - folded for case and accent insensitive search
	for _, name := range []string{
		domain.PromptFieldTitle,
		domain.PromptFieldGeneratedPrompt,
		domain.PromptFieldDescription,
		domain.PromptFieldProduct,
		domain.PromptFieldEpic,
	} {
		field := bleve.NewTextFieldMapping()
		field.Analyzer = FoldingAnalyzer
		field.Store = false
		docMapping.AddFieldMappingsAt(name, field)
	}

	// Status - keyword, exact filtering
	statusField := bleve.NewTextFieldMapping()
	statusField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(domain.PromptFieldStatus, statusField)

	// ID - stored but not indexed (we use the document ID)
	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	docMapping.AddFieldMappingsAt(domain.PromptFieldID, idField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = FoldingAnalyzer

	return indexMapping, nil
}

// Build creates a memory-only index containing the given prompts.
func (i *Indexer) Build(prompts []domain.Prompt) (bleve.Index, error) {
	indexMapping, err := CreateIndexMapping()
	if err != nil {
		return nil, err
	}

	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := index.NewBatch()
	for _, p := range prompts {
		if err := batch.Index(p.ID, newPromptDocument(p)); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index prompt %s: %w", p.ID, err)
		}

		if batch.Size() >= MaxBatchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("batch index failed: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("final batch index failed: %w", err)
		}
	}

	return index, nil
}

// BuildQuery constructs a weighted Bleve query for free text. Title prefix
// terms are folded by analyzer so they compare against indexed tokens; a nil
// analyzer falls back to relevance term extraction.
func (i *Indexer) BuildQuery(text string, analyzer analysis.Analyzer) query.Query {
	boosts := []struct {
		field string
		boost float64
	}{
		{domain.PromptFieldTitle, i.weights.Title},
		{domain.PromptFieldGeneratedPrompt, i.weights.GeneratedPrompt},
		{domain.PromptFieldDescription, i.weights.Description},
		{domain.PromptFieldProduct, i.weights.Product},
		{domain.PromptFieldEpic, i.weights.Epic},
	}

	var disjuncts []query.Query
	for _, b := range boosts {
		if b.boost <= 0 {
			continue
		}
		q := bleve.NewMatchQuery(text)
		q.SetField(b.field)
		q.SetBoost(b.boost)
		disjuncts = append(disjuncts, q)
	}

	// Prefix queries catch partially typed words in titles
	for _, term := range prefixTerms(text, analyzer) {
		q := bleve.NewPrefixQuery(term)
		q.SetField(domain.PromptFieldTitle)
		disjuncts = append(disjuncts, q)
	}

	return bleve.NewDisjunctionQuery(disjuncts...)
}

func prefixTerms(text string, analyzer analysis.Analyzer) []string {
	if analyzer == nil {
		return search.ExtractTerms(text)
	}
	var terms []string
	for _, tok := range analyzer.Analyze([]byte(text)) {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// FullText runs a full-text query against index and returns up to size hits
// in descending score order.
func (i *Indexer) FullText(ctx context.Context, index bleve.Index, text string, size int) ([]Hit, error) {
	if size <= 0 {
		return []Hit{}, nil
	}

	analyzer := index.Mapping().AnalyzerNamed(FoldingAnalyzer)
	req := bleve.NewSearchRequestOptions(i.BuildQuery(text, analyzer), size, 0, false)
	results, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("full-text search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}
