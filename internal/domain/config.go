package domain

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Database    DatabaseConfig     `mapstructure:"database"`
	Cache       CacheConfig        `mapstructure:"cache"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Catalog     CatalogConfig      `mapstructure:"catalog"`
	Suggestions SuggestionSettings `mapstructure:"suggestions"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimitRPS float64       `mapstructure:"rate_limit_rps"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig represents the suggestion response cache configuration
type CacheConfig struct {
	RedisURL   string        `mapstructure:"redis_url"`
	MaxEntries int           `mapstructure:"max_entries"`
	MemoryTTL  time.Duration `mapstructure:"memory_ttl"`
	RedisTTL   time.Duration `mapstructure:"redis_ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CatalogConfig points at the catalog source.
type CatalogConfig struct {
	File string `mapstructure:"file"`
}
