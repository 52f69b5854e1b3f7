// Package config provides configuration management for the suggestion
// server. The full server reads a config.yaml plus PROCSUGGEST_* env vars
// through viper; the standalone MCP server uses the env-only LiteConfig.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/procedure-suggest-server/internal/domain"
)

// Manager loads and validates the full server configuration using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/procedure-suggest-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("PROCSUGGEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("server.rate_burst", 40)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "procedure_suggest")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "./migrations")

	// Cache defaults
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.max_entries", 512)
	viper.SetDefault("cache.memory_ttl", "5m")
	viper.SetDefault("cache.redis_ttl", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Catalog defaults
	viper.SetDefault("catalog.file", "./data/catalog.json")

	// Suggestion defaults
	defaults := domain.DefaultSuggestionSettings()
	viper.SetDefault("suggestions.enabled", defaults.Enabled)
	viper.SetDefault("suggestions.threshold", defaults.Threshold)
	viper.SetDefault("suggestions.max_suggestions", defaults.MaxSuggestions)
	viper.SetDefault("suggestions.ai_provider", defaults.AIProvider)
	viper.SetDefault("suggestions.ai_api_key", "")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetSuggestionSettings returns the suggestion settings
func (m *Manager) GetSuggestionSettings() domain.SuggestionSettings {
	return m.config.Suggestions
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate database configuration
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	// Validate suggestion settings
	if config.Suggestions.Threshold < 0 || config.Suggestions.Threshold > 100 {
		return fmt.Errorf("suggestion threshold must be between 0 and 100: %g", config.Suggestions.Threshold)
	}
	if config.Suggestions.MaxSuggestions < 0 {
		return fmt.Errorf("max suggestions must not be negative: %d", config.Suggestions.MaxSuggestions)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
