// Package mcp exposes the suggestion service as MCP tools so AI agents can
// query and train the co-occurrence statistics. The lite server requires no
// external databases: counters and catalog both live in local SQLite files.
package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/catalog"
	litecfg "github.com/procedure-suggest-server/internal/config"
	"github.com/procedure-suggest-server/internal/prediction"
	"github.com/procedure-suggest-server/internal/service"
)

// LiteServer is a lightweight MCP server that requires no external databases.
type LiteServer struct {
	config          *litecfg.LiteConfig
	mcpServer       *mcp.Server
	catalogStore    catalog.Store
	predictionStore prediction.Store
	suggestions     *service.SuggestionService
	logger          *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithCatalogStore sets a custom catalog store.
func WithCatalogStore(store catalog.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.catalogStore = store
		return nil
	}
}

// WithPredictionStore sets a custom prediction store.
func WithPredictionStore(store prediction.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.predictionStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	// Create server with default logger
	server := &LiteServer{
		config: cfg,
		logger: logrus.New(),
	}

	// Configure default logger
	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	server.logger.SetLevel(level)

	// Apply options
	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Ensure data directory exists
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Initialize prediction store if not provided
	if server.predictionStore == nil {
		store, err := prediction.NewSQLiteStore(cfg.PredictionDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create prediction store: %w", err)
		}
		server.predictionStore = store
	}

	// Initialize catalog if not provided. The catalog lives in its own
	// SQLite database, reseeded from the JSON file when one is configured,
	// and is wrapped with an LRU cache for per-procedure lookups.
	if server.catalogStore == nil {
		store, err := catalog.NewSQLiteStore(cfg.CatalogDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog store: %w", err)
		}
		if cfg.CatalogFile != "" {
			file, err := catalog.LoadFile(cfg.CatalogFile)
			if err != nil {
				store.Close()
				return nil, fmt.Errorf("failed to load catalog file: %w", err)
			}
			if err := store.Seed(context.Background(), file); err != nil {
				store.Close()
				return nil, fmt.Errorf("failed to seed catalog: %w", err)
			}
		}
		cached, err := catalog.NewCachedStore(store, catalog.CachedStoreConfig{
			MaxEntries: cfg.CacheMaxItems,
			TTL:        cfg.CacheTTL,
		}, server.logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create catalog cache: %w", err)
		}
		server.catalogStore = cached
	}

	server.suggestions = service.NewSuggestionService(
		cfg.Suggestions,
		server.catalogStore,
		server.predictionStore,
		nil, // no response cache in lite mode
		server.logger,
	)

	// Create MCP server and register tools
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "procedure-suggest-server-lite",
		Version: "v0.1.0",
	}, nil)
	server.mcpServer = mcpServer
	server.registerTools()

	server.logger.Info("Lite server initialized successfully")
	return server, nil
}

// toolSchema infers an input schema from a parameter struct; the SDK's
// AddTool panics on a nil input schema, so registration needs one even
// though the handlers validate their own arguments.
func toolSchema[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("inferring tool input schema: %v", err))
	}
	return schema
}

// registerTools registers the suggestion tools with the MCP SDK.
func (s *LiteServer) registerTools() {
	tools := []struct {
		tool    *mcp.Tool
		handler mcp.ToolHandler
	}{
		{
			tool: &mcp.Tool{
				Name:        "suggest_procedures",
				Description: "Suggest additional procedures for the current session based on historical co-occurrence statistics",
				InputSchema: toolSchema[SuggestProceduresParams](),
			},
			handler: s.handleSuggestProcedures,
		},
		{
			tool: &mcp.Tool{
				Name:        "record_session",
				Description: "Record a completed procedure session to improve future suggestions",
				InputSchema: toolSchema[RecordSessionParams](),
			},
			handler: s.handleRecordSession,
		},
		{
			tool: &mcp.Tool{
				Name:        "prediction_stats",
				Description: "Report statistics about the accumulated prediction data",
				InputSchema: &jsonschema.Schema{Type: "object"},
			},
			handler: s.handlePredictionStats,
		},
		{
			tool: &mcp.Tool{
				Name:        "list_procedures",
				Description: "List the procedures available in the catalog",
				InputSchema: &jsonschema.Schema{Type: "object"},
			},
			handler: s.handleListProcedures,
		},
	}

	for _, t := range tools {
		s.mcpServer.AddTool(t.tool, t.handler)
		s.logger.WithField("tool_name", t.tool.Name).Debug("Registered MCP tool")
	}

	s.logger.WithField("tool_count", len(tools)).Info("Successfully registered all tools")
}

// Start runs the MCP server over stdio until ctx is cancelled.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting Procedure Suggestion MCP Server (Lite)...")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.predictionStore != nil {
		if err := s.predictionStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close prediction store")
		}
	}
	if s.catalogStore != nil {
		return s.catalogStore.Close()
	}
	return nil
}
