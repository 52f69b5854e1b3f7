package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/procedure-suggest-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir     string // Base directory for data files
	CatalogFile string // Optional: JSON catalog to load at startup

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Suggestion settings
	Suggestions domain.SuggestionSettings

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".procedure-suggest")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      time.Hour,
		Suggestions:   domain.DefaultSuggestionSettings(),
		Transport:     "stdio",
		HTTPPort:      8080,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directory and catalog
	if v := os.Getenv("PROCSUGGEST_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PROCSUGGEST_CATALOG_FILE"); v != "" {
		cfg.CatalogFile = v
	}

	// Cache settings
	if v := os.Getenv("PROCSUGGEST_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("PROCSUGGEST_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// Suggestion settings
	if v := os.Getenv("PROCSUGGEST_SUGGESTIONS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Suggestions.Enabled = b
		}
	}
	if v := os.Getenv("PROCSUGGEST_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 100 {
			cfg.Suggestions.Threshold = f
		}
	}
	if v := os.Getenv("PROCSUGGEST_MAX_SUGGESTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Suggestions.MaxSuggestions = n
		}
	}
	if v := os.Getenv("PROCSUGGEST_AI_PROVIDER"); v != "" {
		cfg.Suggestions.AIProvider = v
	}
	cfg.Suggestions.AIAPIKey = os.Getenv("PROCSUGGEST_AI_API_KEY")

	// Transport
	if v := os.Getenv("PROCSUGGEST_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("PROCSUGGEST_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	// Logging
	if v := os.Getenv("PROCSUGGEST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROCSUGGEST_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// PredictionDBPath returns the path to the prediction SQLite database.
func (c *LiteConfig) PredictionDBPath() string {
	return filepath.Join(c.DataDir, "predictions.db")
}

// CatalogDBPath returns the path to the catalog SQLite database.
func (c *LiteConfig) CatalogDBPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
