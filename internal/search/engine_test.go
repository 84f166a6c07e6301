package search

import (
	"fmt"
	"slices"
	"testing"

	"github.com/sha1n/mcp-promptdex-server/internal/domain"
)

func samplePrompts() []domain.Prompt {
	return []domain.Prompt{
		{ID: "1", Title: "Add login page"},
		{ID: "2", Title: "Refactor CSS", Description: "login related styles"},
		{ID: "3", Title: "Write release notes", EpicName: "Docs"},
	}
}

func TestSearch_EmptyQueryReturnsAllInOrder(t *testing.T) {
	prompts := samplePrompts()

	for _, query := range []string{"", "   ", "\t\n"} {
		results := Search(prompts, query, Options{})
		if len(results) != len(prompts) {
			t.Fatalf("Expected %d results for %q, got %d", len(prompts), query, len(results))
		}
		for i, r := range results {
			if r.Prompt.ID != prompts[i].ID {
				t.Errorf("Result %d: expected ID %s, got %s", i, prompts[i].ID, r.Prompt.ID)
			}
			if r.Score != 1 {
				t.Errorf("Result %d: expected score 1, got %v", i, r.Score)
			}
			if len(r.MatchedFields) != 0 || len(r.MatchedTerms) != 0 {
				t.Errorf("Result %d: expected no match bookkeeping, got %v %v", i, r.MatchedFields, r.MatchedTerms)
			}
		}
	}
}

func TestSearch_EmptyQueryIgnoresMaxResults(t *testing.T) {
	results := Search(samplePrompts(), "", Options{MaxResults: 1})
	if len(results) != 3 {
		t.Errorf("Expected all 3 prompts for empty query, got %d", len(results))
	}
}

func TestSearch_EmptyCollection(t *testing.T) {
	for _, query := range []string{"", "anything"} {
		results := Search(nil, query, Options{})
		if results == nil {
			t.Errorf("Expected non-nil empty slice for %q", query)
		}
		if len(results) != 0 {
			t.Errorf("Expected no results for %q, got %d", query, len(results))
		}
	}
}

func TestSearch_LoginScenario(t *testing.T) {
	results := Search(samplePrompts(), "login", Options{})

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Prompt.ID != "1" || results[1].Prompt.ID != "2" {
		t.Fatalf("Expected order [1 2], got [%s %s]", results[0].Prompt.ID, results[1].Prompt.ID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("Expected title match to rank first, got %v < %v", results[0].Score, results[1].Score)
	}
	if !slices.Contains(results[0].MatchedFields, domain.PromptFieldTitle) {
		t.Errorf("Expected title in matched fields, got %v", results[0].MatchedFields)
	}
	if !slices.Contains(results[1].MatchedFields, domain.PromptFieldDescription) {
		t.Errorf("Expected description in matched fields, got %v", results[1].MatchedFields)
	}

	// title: 3*2 = 6 -> 6/3 = 2; description: 2*2 + 2*0.5 = 5 -> 5/3
	if results[0].Score != 2 {
		t.Errorf("Expected score 2, got %v", results[0].Score)
	}
	if want := 5.0 / 3.0; results[1].Score != want {
		t.Errorf("Expected score %v, got %v", want, results[1].Score)
	}
}

func TestSearch_NoMatch(t *testing.T) {
	results := Search(samplePrompts(), "xyzzy123", Options{})
	if results == nil || len(results) != 0 {
		t.Errorf("Expected empty non-nil result, got %v", results)
	}
}

func TestSearch_MatchedFieldsAndTermsDeduplicated(t *testing.T) {
	prompts := []domain.Prompt{{
		ID:              "1",
		Title:           "Login flow",
		GeneratedPrompt: "Implement the login flow with OAuth",
		Description:     "login",
		ProductName:     "Login Portal",
		EpicName:        "Flow improvements",
	}}

	results := Search(prompts, "login flow login", Options{})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	wantFields := []string{
		domain.PromptFieldTitle,
		domain.PromptFieldGeneratedPrompt,
		domain.PromptFieldDescription,
		domain.PromptFieldProduct,
		domain.PromptFieldEpic,
	}
	if !slices.Equal(results[0].MatchedFields, wantFields) {
		t.Errorf("Expected fields %v, got %v", wantFields, results[0].MatchedFields)
	}
	if !slices.Equal(results[0].MatchedTerms, []string{"login", "flow"}) {
		t.Errorf("Expected terms [login flow], got %v", results[0].MatchedTerms)
	}
}

func TestSearch_ScoreCanExceedOne(t *testing.T) {
	prompts := []domain.Prompt{{ID: "1", Title: "deploy", GeneratedPrompt: "deploy", Description: "deploy"}}

	results := Search(prompts, "deploy", Options{})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	// (7.5 + 6.25 + 5) / 3
	if want := 18.75 / 3; results[0].Score != want {
		t.Errorf("Expected score %v, got %v", want, results[0].Score)
	}
}

func TestSearch_MinScoreThreshold(t *testing.T) {
	prompts := []domain.Prompt{
		{ID: "title", Title: "Login"},
		{ID: "epic", Title: "Other", EpicName: "a login epic"},
	}

	// epic only: 1.5*2 = 3 -> 3/3 = 1; with two terms the epic-only record drops to 0.5
	results := Search(prompts, "login other", Options{MinScore: 0.6})
	for _, r := range results {
		if r.Score < 0.6 {
			t.Errorf("Result %s has score %v below threshold", r.Prompt.ID, r.Score)
		}
	}

	results = Search(prompts, "login", Options{MinScore: 0.5})
	for _, r := range results {
		if r.Score < 0.5 {
			t.Errorf("Result %s has score %v below threshold", r.Prompt.ID, r.Score)
		}
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
}

func TestSearch_NegativeMinScoreKeepsEverything(t *testing.T) {
	results := Search(samplePrompts(), "login", Options{MinScore: -1})
	if len(results) != 3 {
		t.Fatalf("Expected all 3 prompts, got %d", len(results))
	}
	if results[2].Score != 0 {
		t.Errorf("Expected non-matching prompt with score 0 last, got %v", results[2].Score)
	}
}

func TestSearch_MaxResults(t *testing.T) {
	var prompts []domain.Prompt
	for i := range 10 {
		prompts = append(prompts, domain.Prompt{ID: fmt.Sprint(i), Title: fmt.Sprintf("task %d", i)})
	}

	results := Search(prompts, "task", Options{MaxResults: 3})
	if len(results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(results))
	}

	results = Search(prompts, "task", Options{MaxResults: -1})
	if len(results) != 10 {
		t.Errorf("Expected uncapped 10 results, got %d", len(results))
	}
}

func TestSearch_DefaultMaxResults(t *testing.T) {
	var prompts []domain.Prompt
	for i := range DefaultMaxResults + 20 {
		prompts = append(prompts, domain.Prompt{ID: fmt.Sprint(i), Title: "same title"})
	}

	results := Search(prompts, "same", Options{})
	if len(results) != DefaultMaxResults {
		t.Errorf("Expected %d results, got %d", DefaultMaxResults, len(results))
	}
}

func TestSearch_SortedDescendingWithStableTies(t *testing.T) {
	prompts := []domain.Prompt{
		{ID: "a", Title: "notes about alpha", Description: "x"},
		{ID: "b", Title: "alpha release"},
		{ID: "c", Title: "notes about alpha", Description: "y"},
		{ID: "d", Title: "misc", Description: "alpha"},
	}

	results := Search(prompts, "alpha", Options{})
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Errorf("Results not sorted at %d: %v < %v", i, results[i-1].Score, results[i].Score)
		}
	}

	var ids []string
	for _, r := range results {
		ids = append(ids, r.Prompt.ID)
	}
	if !slices.Equal(ids, []string{"b", "a", "c", "d"}) {
		t.Errorf("Expected order [b a c d], got %v", ids)
	}
}

func TestSearch_TermOrderInvariant(t *testing.T) {
	prompts := []domain.Prompt{{ID: "1", Title: "foo service", Description: "bar handler", ProductName: "foobar"}}

	a := Search(prompts, "foo bar", Options{})
	b := Search(prompts, "bar foo", Options{})
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("Expected one result each, got %d and %d", len(a), len(b))
	}
	if a[0].Score != b[0].Score {
		t.Errorf("Expected equal scores, got %v and %v", a[0].Score, b[0].Score)
	}
}

func TestSearch_AccentInsensitive(t *testing.T) {
	prompts := []domain.Prompt{{ID: "1", Title: "Café ordering flow"}}

	results := Search(prompts, "cafe", Options{})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	results = Search([]domain.Prompt{{ID: "2", Title: "cafe ordering"}}, "CAFÉ", Options{})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result for accented query, got %d", len(results))
	}
}

func TestSearch_DoesNotMutateInput(t *testing.T) {
	prompts := samplePrompts()
	original := slices.Clone(prompts)

	_ = Search(prompts, "notes", Options{})

	for i := range prompts {
		if prompts[i].ID != original[i].ID || prompts[i].Title != original[i].Title {
			t.Errorf("Input modified at %d", i)
		}
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(Config{Weights: DefaultWeights()})
	cfg := e.Config()

	if cfg.NormalizationWeight != DefaultNormalizationWeight {
		t.Errorf("Expected normalization weight %v, got %v", DefaultNormalizationWeight, cfg.NormalizationWeight)
	}
	if cfg.MinScore != DefaultMinScore {
		t.Errorf("Expected min score %v, got %v", DefaultMinScore, cfg.MinScore)
	}
	if cfg.MaxResults != DefaultMaxResults {
		t.Errorf("Expected max results %v, got %v", DefaultMaxResults, cfg.MaxResults)
	}
}

func TestEngine_CustomWeights(t *testing.T) {
	weights := DefaultWeights()
	weights.Description = 10
	e := NewEngine(Config{Weights: weights})

	results := e.Search(samplePrompts(), "login", Options{})
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Prompt.ID != "2" {
		t.Errorf("Expected heavily weighted description match first, got %s", results[0].Prompt.ID)
	}
}

func TestEngine_CustomNormalizationWeight(t *testing.T) {
	e := NewEngine(Config{Weights: DefaultWeights(), NormalizationWeight: 6})

	results := e.Search([]domain.Prompt{{ID: "1", Title: "Add login page"}}, "login", Options{})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Score != 1 {
		t.Errorf("Expected score 1 with divisor 6, got %v", results[0].Score)
	}
}

func BenchmarkSearch(b *testing.B) {
	var prompts []domain.Prompt
	for i := range 1000 {
		prompts = append(prompts, domain.Prompt{
			ID:              fmt.Sprint(i),
			Title:           fmt.Sprintf("Prompt number %d for the checkout page", i),
			GeneratedPrompt: "Implement the feature described above with tests and documentation",
			Description:     "Some longer description about the work involved",
			ProductName:     "Storefront",
			EpicName:        "Payments",
		})
	}
	engine := NewEngine(DefaultConfig())

	b.ResetTimer()
	for b.Loop() {
		_ = engine.Search(prompts, "checkout payments", Options{})
	}
}

func TestEngine_Score(t *testing.T) {
	e := NewEngine(DefaultConfig())

	r := e.Score(domain.Prompt{ID: "1", Title: "Refactor CSS", Description: "login related styles"}, "login")
	if want := 5.0 / 3.0; r.Score != want {
		t.Errorf("Expected score %v, got %v", want, r.Score)
	}
	if !slices.Equal(r.MatchedFields, []string{domain.PromptFieldDescription}) {
		t.Errorf("Expected [description], got %v", r.MatchedFields)
	}

	// No threshold is applied
	r = e.Score(domain.Prompt{ID: "2", Title: "Unrelated"}, "login")
	if r.Score != 0 || len(r.MatchedTerms) != 0 {
		t.Errorf("Expected zero score without matches, got %v %v", r.Score, r.MatchedTerms)
	}

	r = e.Score(domain.Prompt{ID: "3", Title: "Anything"}, "   ")
	if r.Score != 0 {
		t.Errorf("Expected zero score for empty query, got %v", r.Score)
	}
}
