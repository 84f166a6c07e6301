package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/mcp-promptdex-server/internal/config"
	"github.com/sha1n/mcp-promptdex-server/internal/domain"
	"github.com/sha1n/mcp-promptdex-server/internal/search"
)

// Mode selects the ranking strategy of a search.
type Mode string

// Search modes
const (
	ModeRelevance Mode = "relevance"
	ModeFullText  Mode = "fulltext"
	ModeCombined  Mode = "combined"
)

var (
	// ErrNotReady is returned while no catalog has been loaded successfully
	ErrNotReady = errors.New("catalog is not ready")

	// ErrPromptNotFound is returned for an unknown prompt ID
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrFullTextDisabled is returned for full-text searches when no index is built
	ErrFullTextDisabled = errors.New("full-text search is disabled")

	// ErrUnknownMode is returned for an unrecognized search mode
	ErrUnknownMode = errors.New("unknown search mode")
)

// ParseMode converts a mode name to a Mode. An empty name means relevance.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case "", ModeRelevance:
		return ModeRelevance, nil
	case ModeFullText:
		return ModeFullText, nil
	case ModeCombined:
		return ModeCombined, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// SearchOptions tunes a catalog search. MinScore and MaxResults follow
// search.Options semantics. Product, Epic and Status restrict the candidate
// prompts by case-insensitive equality before ranking.
type SearchOptions struct {
	Mode       Mode
	MinScore   float64
	MaxResults int
	Product    string
	Epic       string
	Status     string
}

func (o SearchOptions) hasFilters() bool {
	return o.Product != "" || o.Epic != "" || o.Status != ""
}

func (o SearchOptions) accepts(p *domain.Prompt) bool {
	if o.Product != "" && !strings.EqualFold(p.ProductName, o.Product) && !strings.EqualFold(p.ProductID, o.Product) {
		return false
	}
	if o.Epic != "" && !strings.EqualFold(p.EpicName, o.Epic) && !strings.EqualFold(p.EpicID, o.Epic) {
		return false
	}
	if o.Status != "" && !strings.EqualFold(p.Status, o.Status) {
		return false
	}
	return true
}

// Stats summarizes the loaded catalog.
type Stats struct {
	Ready     bool
	Prompts   int
	Files     int
	ByProduct map[string]int
	ByStatus  map[string]int
	LastLoad  time.Time
	LastError string
}

// snapshotState is everything produced by one catalog load.
type snapshotState struct {
	prompts []domain.Prompt
	byID    map[string]int
	files   []string
	index   bleve.Index
}

// Service loads prompt catalogs and searches them.
type Service struct {
	settings *config.CatalogSettings
	metrics  *Metrics
	engine   *search.Engine
	indexer  *Indexer

	// loadMu serializes loads; mu guards the published state.
	loadMu    sync.Mutex
	mu        sync.RWMutex
	state     *snapshotState
	ready     bool
	lastLoad  time.Time
	lastError string
}

// NewService creates a new catalog service. metrics may be nil.
func NewService(settings *config.CatalogSettings, metrics *Metrics) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	cfg := EngineConfig(settings)
	return &Service{
		settings: settings,
		metrics:  metrics,
		engine:   search.NewEngine(cfg),
		indexer:  NewIndexer(cfg.Weights),
	}, nil
}

// EngineConfig derives the relevance engine configuration from settings.
// All-zero weights mean the defaults.
func EngineConfig(settings *config.CatalogSettings) search.Config {
	cfg := search.Config{
		Weights: search.Weights{
			Title:           settings.Weights.Title,
			GeneratedPrompt: settings.Weights.GeneratedPrompt,
			Description:     settings.Weights.Description,
			Product:         settings.Weights.Product,
			Epic:            settings.Weights.Epic,
		},
		NormalizationWeight: settings.NormalizationWeight,
		MinScore:            settings.MinScore,
		MaxResults:          settings.MaxResults,
	}
	if cfg.Weights == (search.Weights{}) {
		cfg.Weights = search.DefaultWeights()
	}
	return cfg
}

// Initialize performs the first catalog load. On failure the service stays
// not ready; a later Reload may still succeed.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	slog.Info("Catalog ready", "prompts", len(s.state.prompts), "files", len(s.state.files))
	return nil
}

// Reload reloads every catalog file and publishes the result atomically.
// If any file fails to load the previous catalog is kept.
func (s *Service) Reload(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	state, err := s.load(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		s.metrics.ObserveLoad(err, 0)
		return err
	}

	s.mu.Lock()
	previous := s.state
	s.state = state
	s.ready = true
	s.lastLoad = time.Now()
	s.lastError = ""
	s.mu.Unlock()

	s.metrics.ObserveLoad(nil, len(state.prompts))

	if previous != nil && previous.index != nil {
		if err := previous.index.Close(); err != nil {
			slog.Warn("Failed to close previous index", "error", err)
		}
	}
	return nil
}

// load resolves, parses and indexes all catalog files.
func (s *Service) load(ctx context.Context) (*snapshotState, error) {
	files, err := ResolvePaths(s.settings.Paths, s.settings.Exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog paths: %w", err)
	}
	if len(files) == 0 {
		slog.Warn("No catalog files matched", "paths", s.settings.Paths)
	}

	state := &snapshotState{
		prompts: []domain.Prompt{},
		byID:    make(map[string]int),
		files:   files,
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snapshot, err := LoadFile(file)
		if err != nil {
			return nil, err
		}

		// Later files win on duplicate IDs; the first position is kept
		for _, p := range snapshot.Prompts {
			if i, ok := state.byID[p.ID]; ok {
				slog.Debug("Prompt redefined", "id", p.ID, "file", file)
				state.prompts[i] = p
				continue
			}
			state.byID[p.ID] = len(state.prompts)
			state.prompts = append(state.prompts, p)
		}
		slog.Debug("Loaded catalog file", "file", file, "prompts", len(snapshot.Prompts))
	}

	if s.settings.FullText {
		index, err := s.indexer.Build(state.prompts)
		if err != nil {
			return nil, fmt.Errorf("failed to build index: %w", err)
		}
		state.index = index
	}

	return state, nil
}

// IsReady returns true once a catalog has been loaded.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Prompts returns a copy of all prompts in load order.
func (s *Service) Prompts() []domain.Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return []domain.Prompt{}
	}
	return slices.Clone(s.state.prompts)
}

// Files returns the catalog files of the current snapshot.
func (s *Service) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return []string{}
	}
	return slices.Clone(s.state.files)
}

// Get returns the prompt with the given ID.
func (s *Service) Get(id string) (domain.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return domain.Prompt{}, ErrNotReady
	}
	i, ok := s.state.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.Prompt{}, fmt.Errorf("%w: %s", ErrPromptNotFound, id)
	}
	return s.state.prompts[i], nil
}

// Search ranks catalog prompts against query using the selected mode.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]search.Result, error) {
	start := time.Now()
	mode := cmp.Or(opts.Mode, ModeRelevance)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return nil, ErrNotReady
	}

	candidates := s.state.prompts
	if opts.hasFilters() {
		candidates = make([]domain.Prompt, 0, len(s.state.prompts))
		for i := range s.state.prompts {
			if opts.accepts(&s.state.prompts[i]) {
				candidates = append(candidates, s.state.prompts[i])
			}
		}
	}

	engineOpts := search.Options{MinScore: opts.MinScore, MaxResults: opts.MaxResults}

	var results []search.Result
	var err error
	switch {
	case mode != ModeRelevance && mode != ModeFullText && mode != ModeCombined:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	case strings.TrimSpace(query) == "" || mode == ModeRelevance:
		results = s.engine.Search(candidates, query, engineOpts)
	case mode == ModeFullText:
		results, err = s.fullText(ctx, candidates, query, engineOpts)
	default:
		results, err = s.combined(ctx, candidates, query, engineOpts)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveSearch(mode, time.Since(start), len(results))
	return results, nil
}

// fullText ranks candidates by Bleve score. Matched fields and terms come
// from the relevance matcher so both modes report them alike. The relevance
// threshold does not apply to Bleve scores.
func (s *Service) fullText(ctx context.Context, candidates []domain.Prompt, query string, opts search.Options) ([]search.Result, error) {
	if s.state.index == nil {
		return nil, ErrFullTextDisabled
	}

	allowed := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		allowed[p.ID] = struct{}{}
	}

	// Fetch every hit; filtering happens after scoring
	hits, err := s.indexer.FullText(ctx, s.state.index, query, len(s.state.prompts))
	if err != nil {
		return nil, err
	}

	maxResults := s.maxResults(opts)
	results := []search.Result{}
	for _, hit := range hits {
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
		if _, ok := allowed[hit.ID]; !ok {
			continue
		}
		i, ok := s.state.byID[hit.ID]
		if !ok {
			continue
		}

		r := s.engine.Score(s.state.prompts[i], query)
		r.Score = hit.Score
		results = append(results, r)
	}
	return results, nil
}

// combined lists full-text results first, then relevance results not
// already present, capped at the result limit.
func (s *Service) combined(ctx context.Context, candidates []domain.Prompt, query string, opts search.Options) ([]search.Result, error) {
	fullText, err := s.fullText(ctx, candidates, query, opts)
	if err != nil {
		return nil, err
	}
	relevance := s.engine.Search(candidates, query, opts)

	maxResults := s.maxResults(opts)
	seen := make(map[string]struct{}, len(fullText)+len(relevance))
	merged := make([]search.Result, 0, len(fullText)+len(relevance))
	for _, r := range slices.Concat(fullText, relevance) {
		if maxResults > 0 && len(merged) >= maxResults {
			break
		}
		if _, ok := seen[r.Prompt.ID]; ok {
			continue
		}
		seen[r.Prompt.ID] = struct{}{}
		merged = append(merged, r)
	}
	return merged, nil
}

func (s *Service) maxResults(opts search.Options) int {
	return cmp.Or(opts.MaxResults, s.engine.Config().MaxResults)
}

// Stats returns a summary of the current catalog.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Ready:     s.ready,
		ByProduct: map[string]int{},
		ByStatus:  map[string]int{},
		LastLoad:  s.lastLoad,
		LastError: s.lastError,
	}
	if s.state == nil {
		return stats
	}

	stats.Prompts = len(s.state.prompts)
	stats.Files = len(s.state.files)
	for _, p := range s.state.prompts {
		stats.ByProduct[cmp.Or(p.ProductName, "(none)")]++
		stats.ByStatus[cmp.Or(p.Status, "(none)")]++
	}
	return stats
}

// Settings returns the service settings.
func (s *Service) Settings() *config.CatalogSettings {
	return s.settings
}

// Close releases the index.
func (s *Service) Close() error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil && s.state.index != nil {
		if err := s.state.index.Close(); err != nil {
			return fmt.Errorf("failed to close index: %w", err)
		}
		s.state.index = nil
	}

	s.ready = false
	return nil
}
