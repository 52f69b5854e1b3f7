// Package api exposes the suggestion service over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/middleware"
	"github.com/procedure-suggest-server/internal/repository"
	"github.com/procedure-suggest-server/internal/service"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimitRPS float64
	RateBurst    int
	Debug        bool
}

// Server represents the HTTP server
type Server struct {
	config      ServerConfig
	suggestions *service.SuggestionService
	sessions    *repository.SessionRepository
	router      *gin.Engine
	server      *http.Server
	limiter     *middleware.RateLimiter
	log         *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(config ServerConfig, suggestions *service.SuggestionService, logger *logrus.Logger) *Server {
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())

	var limiter *middleware.RateLimiter
	if config.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(config.RateLimitRPS, config.RateBurst)
		router.Use(limiter.Middleware())
	}

	server := &Server{
		config:      config,
		suggestions: suggestions,
		router:      router,
		limiter:     limiter,
		log:         logger,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// AttachSessionLog enables the session log endpoints. Must be called before
// Start; the log is optional and the server runs without it.
func (s *Server) AttachSessionLog(sessions *repository.SessionRepository) {
	s.sessions = sessions
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.limiter != nil {
		defer s.limiter.Stop()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/suggestions", s.handleSuggestions)
		v1.GET("/suggestions/live", s.handleLiveSuggestions)
		v1.POST("/sessions", s.handleRecordSession)
		v1.GET("/sessions", s.handleListSessions)
		v1.GET("/sessions/:id", s.handleGetSession)
		v1.GET("/catalog/procedures", s.handleListProcedures)
		v1.GET("/catalog/categories", s.handleListCategories)
		v1.GET("/predictions/stats", s.handlePredictionStats)
		v1.GET("/predictions/export", s.handleExportPredictions)
		v1.POST("/predictions/import", s.handleImportPredictions)
		v1.POST("/predictions/rebuild", s.handleRebuildPredictions)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   "1.0.0",
	})
}
