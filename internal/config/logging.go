package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
		logger.InfoContext(ctx, "Config: metrics.enabled", "value", s.Metrics.Enabled)
		if s.Metrics.Enabled {
			logger.InfoContext(ctx, "Config: metrics.path", "value", s.Metrics.Path)
		}
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	logger.InfoContext(ctx, "Config: catalog.enabled", "value", s.Catalog.Enabled)
	if !s.Catalog.Enabled {
		return
	}
	logger.InfoContext(ctx, "Config: catalog.paths", "value", s.Catalog.Paths)
	if len(s.Catalog.Exclude) > 0 {
		logger.InfoContext(ctx, "Config: catalog.exclude", "value", s.Catalog.Exclude)
	}
	logger.InfoContext(ctx, "Config: catalog.watch", "value", s.Catalog.Watch)
	if s.Catalog.Watch {
		logger.InfoContext(ctx, "Config: catalog.debounce", "value", s.Catalog.Debounce)
	}
	logger.InfoContext(ctx, "Config: catalog.fulltext", "value", s.Catalog.FullText)
	logger.InfoContext(ctx, "Config: catalog.search", "min_score", s.Catalog.MinScore, "max_results", s.Catalog.MaxResults)
	logger.InfoContext(ctx, "Config: catalog.weights", "value", WeightSettingsLogValue(s.Catalog.Weights))
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// WeightSettingsLogValue returns a slog.Value for WeightSettings
func WeightSettingsLogValue(w WeightSettings) slog.Value {
	return slog.GroupValue(
		slog.Float64("title", w.Title),
		slog.Float64("generated_prompt", w.GeneratedPrompt),
		slog.Float64("description", w.Description),
		slog.Float64("product", w.Product),
		slog.Float64("epic", w.Epic),
	)
}

// CatalogSettingsLogValue returns a slog.Value for CatalogSettings
func CatalogSettingsLogValue(s CatalogSettings) slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", s.Enabled),
		slog.Any("paths", s.Paths),
		slog.Bool("watch", s.Watch),
		slog.Duration("debounce", s.Debounce),
		slog.Bool("fulltext", s.FullText),
		slog.Float64("min_score", s.MinScore),
		slog.Int("max_results", s.MaxResults),
		slog.Any("weights", WeightSettingsLogValue(s.Weights)),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("catalog", CatalogSettingsLogValue(s.Catalog)),
	)
}
