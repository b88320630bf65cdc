// Package api exposes the risk engine over HTTP: assessment and projection
// endpoints, saved-case CRUD, report generation, and a WebSocket channel for
// live recalculation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/casestore"
	"github.com/prime-cvd-server/internal/domain"
	"github.com/prime-cvd-server/internal/middleware"
	"github.com/prime-cvd-server/internal/report"
	"github.com/prime-cvd-server/internal/repository"
)

// Deps carries the collaborators the HTTP surface exposes. Assessor and
// Logger are required. Cases, History and Citations are optional; routes
// backed by a missing collaborator answer 503.
type Deps struct {
	Assessor  domain.RiskAssessor
	Cases     casestore.Store
	History   *repository.AssessmentRepository
	Citations domain.CitationResolver
	Logger    *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg       *domain.Config
	assessor  domain.RiskAssessor
	cases     casestore.Store
	history   *repository.AssessmentRepository
	citations domain.CitationResolver
	reports   *report.Builder
	logger    *logrus.Logger
	router    *gin.Engine
	server    *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Assessor == nil {
		return nil, fmt.Errorf("assessor is required")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(corsMiddleware())

	server := &Server{
		cfg:       cfg,
		assessor:  deps.Assessor,
		cases:     deps.Cases,
		history:   deps.History,
		citations: deps.Citations,
		reports:   report.NewBuilder(deps.Logger),
		logger:    deps.Logger,
		router:    router,
	}

	// Setup routes
	server.setupRoutes()

	return server, nil
}

// Start starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// Router returns the underlying gin engine, used by tests to drive requests
// without binding a socket.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// WebSocket endpoint bypasses the request timeout; connections are
	// long-lived by design of the recalculation loop.
	s.router.GET("/api/v1/ws/assess", s.handleLiveAssess)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RequestTimeout(s.requestTimeout()))
	{
		v1.POST("/assess", s.handleAssess)
		v1.POST("/risk", s.handleRisk)
		v1.POST("/treatment", s.handleTreatment)
		v1.POST("/lipid", s.handleLipid)
		v1.POST("/validate-therapies", s.handleValidateTherapies)
		v1.POST("/report", s.handleReport)

		v1.GET("/evidence", s.handleEvidence)
		v1.GET("/interventions", s.handleInterventions)

		v1.POST("/cases", s.handleSaveCase)
		v1.GET("/cases", s.handleListCases)
		v1.GET("/cases/export", s.handleExportCases)
		v1.POST("/cases/import", s.handleImportCases)
		v1.GET("/cases/:id", s.handleGetCase)
		v1.DELETE("/cases/:id", s.handleDeleteCase)

		v1.GET("/assessments", s.handleListAssessments)
		v1.GET("/assessments/stats", s.handleAssessmentStats)
		v1.GET("/assessments/:id", s.handleGetAssessment)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.Server.WriteTimeout > 0 {
		return s.cfg.Server.WriteTimeout
	}
	return 30 * time.Second
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   domain.EngineVersion,
	})
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
