package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	// Catalog
	flags.Bool("catalog-enabled", false, "Enable the prompt catalog (default true)")
	flags.StringSliceP("catalog-paths", "c", nil, "Catalog files, directories or glob patterns (comma-separated, ** supported)")
	flags.StringSlice("catalog-exclude", nil, "Glob patterns of catalog files to skip (comma-separated)")
	flags.BoolP("catalog-watch", "w", false, "Reload the catalog when its files change")
	flags.Duration("catalog-debounce", 0, "Delay before reloading after a change (default 500ms)")
	flags.Bool("catalog-fulltext", false, "Build the full-text index for fulltext and combined search modes (default true)")
	flags.Float64("catalog-min-score", 0, "Minimum relevance score of search results (default 0.1)")
	flags.IntP("catalog-max-results", "n", 0, "Maximum number of search results (default 100)")

	// Metrics
	flags.Bool("metrics-enabled", false, "Expose Prometheus metrics on the SSE server (default true)")
}
