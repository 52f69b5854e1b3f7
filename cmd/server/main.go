package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/api"
	"github.com/procedure-suggest-server/internal/cache"
	"github.com/procedure-suggest-server/internal/catalog"
	"github.com/procedure-suggest-server/internal/config"
	"github.com/procedure-suggest-server/internal/database"
	"github.com/procedure-suggest-server/internal/domain"
	"github.com/procedure-suggest-server/internal/prediction"
	"github.com/procedure-suggest-server/internal/repository"
	"github.com/procedure-suggest-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting procedure suggestion server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		Database:    cfg.Database.Database,
		Username:    cfg.Database.Username,
		Password:    cfg.Database.Password,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    int32(cfg.Database.MaxOpenConns),
		MinConns:    int32(cfg.Database.MaxIdleConns),
		MaxConnLife: cfg.Database.ConnMaxLifetime,
	}

	// Apply schema migrations before opening stores. The migrate-down
	// subcommand rolls back the latest migration instead of serving.
	runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		if err := runner.Down(); err != nil {
			logger.WithError(err).Fatal("Failed to roll back migration")
		}
		runner.Close()
		return
	}
	if err := runner.Up(); err != nil {
		logger.WithError(err).Fatal("Failed to apply migrations")
	}
	runner.Close()

	// Prediction counters live in PostgreSQL for the full server
	predictionStore, err := prediction.NewPostgresStore(dbConfig.URL())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open prediction store")
	}
	defer predictionStore.Close()

	// Session log shares the pgx pool
	db, err := database.NewConnection(ctx, dbConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	sessionRepo := repository.NewSessionRepository(db.Pool, logger)

	catalogStore := loadCatalog(cfg.Catalog, logger)
	defer catalogStore.Close()

	responseCache, err := cache.NewSuggestionCache(cache.SuggestionCacheConfig{
		MaxEntries: cfg.Cache.MaxEntries,
		MemoryTTL:  cfg.Cache.MemoryTTL,
		RedisTTL:   cfg.Cache.RedisTTL,
		RedisURL:   cfg.Cache.RedisURL,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create suggestion cache")
	}
	defer responseCache.Close()

	suggestionService := service.NewSuggestionService(
		cfg.Suggestions,
		catalogStore,
		predictionStore,
		responseCache,
		logger,
	)

	server := api.NewServer(api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimitRPS: cfg.Server.RateLimitRPS,
		RateBurst:    cfg.Server.RateBurst,
	}, suggestionService, logger)
	server.AttachSessionLog(sessionRepo)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	}

	return logger
}

// loadCatalog reads the JSON catalog file. A missing catalog is not fatal:
// the server still records sessions, but suggestions stay empty until a
// catalog is provided.
func loadCatalog(cfg domain.CatalogConfig, logger *logrus.Logger) catalog.Store {
	if cfg.File == "" {
		logger.Warn("No catalog file configured, starting with empty catalog")
		return catalog.NewMemoryStore(nil, nil)
	}

	store, err := catalog.NewMemoryStoreFromFile(cfg.File)
	if err != nil {
		logger.WithError(err).WithField("file", cfg.File).Warn("Failed to load catalog, starting empty")
		return catalog.NewMemoryStore(nil, nil)
	}

	return store
}
