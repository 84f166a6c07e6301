package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// EnvPrefix is the prefix of all environment variables read by the server
const EnvPrefix = "PROMPTDEX_MCP"

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// WeightSettings holds per-field relevance weights
type WeightSettings struct {
	Title           float64 `mapstructure:"title"`
	GeneratedPrompt float64 `mapstructure:"generated_prompt"`
	Description     float64 `mapstructure:"description"`
	Product         float64 `mapstructure:"product"`
	Epic            float64 `mapstructure:"epic"`
}

// CatalogSettings configuration for the prompt catalog and its search
type CatalogSettings struct {
	Enabled    bool          `mapstructure:"enabled"`
	Paths      []string      `mapstructure:"paths"`   // glob patterns, ** supported
	Exclude    []string      `mapstructure:"exclude"` // glob patterns matched against resolved files
	Watch      bool          `mapstructure:"watch"`
	Debounce   time.Duration `mapstructure:"debounce"`
	FullText   bool          `mapstructure:"fulltext"`
	MinScore   float64       `mapstructure:"min_score"`
	MaxResults int           `mapstructure:"max_results"`

	// NormalizationWeight divides a prompt's total score per query term
	NormalizationWeight float64        `mapstructure:"normalization_weight"`
	Weights             WeightSettings `mapstructure:"weights"`
}

// MetricsSettings configuration for the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Settings application settings
type Settings struct {
	Transport string          `mapstructure:"transport"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	Auth      AuthSettings    `mapstructure:"auth"`
	Catalog   CatalogSettings `mapstructure:"catalog"`
	Metrics   MetricsSettings `mapstructure:"metrics"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// flagBindings maps config keys to CLI flag names
var flagBindings = map[string]string{
	"transport":           "transport",
	"host":                "host",
	"port":                "port",
	"auth.type":           "auth-type",
	"auth.basic.username": "auth-basic-username",
	"auth.basic.password": "auth-basic-password",
	"auth.api_keys":       "auth-api-keys",
	"catalog.enabled":     "catalog-enabled",
	"catalog.paths":       "catalog-paths",
	"catalog.exclude":     "catalog-exclude",
	"catalog.watch":       "catalog-watch",
	"catalog.debounce":    "catalog-debounce",
	"catalog.fulltext":    "catalog-fulltext",
	"catalog.min_score":   "catalog-min-score",
	"catalog.max_results": "catalog-max-results",
	"metrics.enabled":     "metrics-enabled",
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	// Catalog defaults
	v.SetDefault("catalog.enabled", true)
	v.SetDefault("catalog.paths", []string{})
	v.SetDefault("catalog.exclude", []string{})
	v.SetDefault("catalog.watch", false)
	v.SetDefault("catalog.debounce", 500*time.Millisecond)
	v.SetDefault("catalog.fulltext", true)
	v.SetDefault("catalog.min_score", 0.1)
	v.SetDefault("catalog.max_results", 100)
	v.SetDefault("catalog.normalization_weight", 3.0)
	v.SetDefault("catalog.weights.title", 3.0)
	v.SetDefault("catalog.weights.generated_prompt", 2.5)
	v.SetDefault("catalog.weights.description", 2.0)
	v.SetDefault("catalog.weights.product", 1.5)
	v.SetDefault("catalog.weights.epic", 1.5)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested keys explicitly; AutomaticEnv only resolves keys viper already knows
	for _, key := range []string{
		"auth.type", "auth.basic.username", "auth.basic.password", "auth.api_keys",
		"catalog.enabled", "catalog.paths", "catalog.exclude", "catalog.watch",
		"catalog.debounce", "catalog.fulltext", "catalog.min_score", "catalog.max_results",
		"catalog.normalization_weight",
		"catalog.weights.title", "catalog.weights.generated_prompt", "catalog.weights.description",
		"catalog.weights.product", "catalog.weights.epic",
		"metrics.enabled", "metrics.path",
	} {
		_ = v.BindEnv(key, envVarName(key))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.Auth.APIKeys = splitListEnv(settings.Auth.APIKeys, envVarName("auth.api_keys"))
	settings.Catalog.Paths = splitListEnv(settings.Catalog.Paths, envVarName("catalog.paths"))
	settings.Catalog.Exclude = splitListEnv(settings.Catalog.Exclude, envVarName("catalog.exclude"))

	for i := range settings.Catalog.Paths {
		settings.Catalog.Paths[i] = expandHomeDir(settings.Catalog.Paths[i])
	}

	return &settings, nil
}

// envVarName returns the environment variable bound to a config key
func envVarName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// splitListEnv handles list values provided via env var as a comma-separated
// string, then trims entries and drops empty ones.
func splitListEnv(values []string, envVar string) []string {
	raw := os.Getenv(envVar)
	if raw != "" {
		if len(values) == 0 || (len(values) == 1 && strings.Contains(values[0], ",")) {
			values = strings.Split(raw, ",")
		}
	}

	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return filterEmptyStrings(values)
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete auth config.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	if err := validateCatalogSettings(&s.Catalog); err != nil {
		return err
	}

	if s.Metrics.Enabled && !strings.HasPrefix(s.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/', got: %q", s.Metrics.Path)
	}

	return nil
}

// validateCatalogSettings validates the catalog configuration
func validateCatalogSettings(c *CatalogSettings) error {
	if !c.Enabled {
		return nil // No validation needed when disabled
	}

	if len(c.Paths) == 0 {
		return errors.New("catalog-enabled requires at least one catalog path (catalog-paths)")
	}

	if c.Watch && c.Debounce <= 0 {
		return errors.New("catalog-debounce must be positive when catalog-watch is set")
	}

	if c.MinScore < 0 {
		return errors.New("catalog-min-score cannot be negative")
	}

	if c.MaxResults <= 0 {
		return errors.New("catalog-max-results must be positive")
	}

	if c.NormalizationWeight <= 0 {
		return errors.New("catalog normalization weight must be positive")
	}

	w := c.Weights
	for name, weight := range map[string]float64{
		"title":            w.Title,
		"generated_prompt": w.GeneratedPrompt,
		"description":      w.Description,
		"product":          w.Product,
		"epic":             w.Epic,
	} {
		if weight < 0 {
			return fmt.Errorf("catalog weight %q cannot be negative", name)
		}
	}

	return nil
}
