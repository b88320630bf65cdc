// Package main provides the entry point for the PRIME-CVD REST server.
// Assessment history and Redis-backed citation caching are optional: the
// engine endpoints stay up when PostgreSQL or Redis are unreachable.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/api"
	"github.com/prime-cvd-server/internal/casestore"
	"github.com/prime-cvd-server/internal/config"
	"github.com/prime-cvd-server/internal/database"
	"github.com/prime-cvd-server/internal/domain"
	"github.com/prime-cvd-server/internal/repository"
	"github.com/prime-cvd-server/internal/service"
	"github.com/prime-cvd-server/pkg/external"
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

	log.Printf("Starting PRIME-CVD REST server on %s:%d", cfg.Server.Host, cfg.Server.Port)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the saved-case store
	cases, err := newCaseStore(cfg.CaseStore)
	if err != nil {
		log.Fatalf("Failed to open case store: %v", err)
	}
	defer cases.Close()

	// Assessment history lives in PostgreSQL. A missing database only
	// disables the history endpoints.
	history, closeHistory := newHistory(ctx, configManager, cfg, logger)
	if closeHistory != nil {
		defer closeHistory()
	}

	citations := newCitationResolver(cfg, logger)

	var assessor domain.RiskAssessor = service.NewAssessor(logger, citations)
	if cfg.Engine.MemoEnabled {
		assessor = service.NewMemoizedAssessor(assessor, logger, cfg.Engine.MemoSize, cfg.Engine.MemoTTL)
	}

	// Create server
	server, err := api.NewServer(cfg, api.Deps{
		Assessor:  assessor,
		Cases:     cases,
		History:   history,
		Citations: citations,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func newCaseStore(cfg domain.CaseStoreConfig) (casestore.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return casestore.NewPostgresStoreFromURL(cfg.URL)
	case "sqlite", "":
		return casestore.NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported case store driver: %s", cfg.Driver)
	}
}

// newHistory connects to PostgreSQL, applies pending migrations and returns
// the assessment repository. On any failure it logs a warning and returns nil
// so the server runs without history.
func newHistory(ctx context.Context, configManager *config.Manager, cfg *domain.Config, logger *logrus.Logger) (*repository.AssessmentRepository, func()) {
	db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
	if err != nil {
		logger.WithError(err).Warn("Assessment history disabled: database unreachable")
		return nil, nil
	}

	runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), logger)
	if err != nil {
		logger.WithError(err).Warn("Assessment history disabled: migration setup failed")
		db.Close()
		return nil, nil
	}
	defer runner.Close()

	if err := runner.Up(ctx); err != nil {
		logger.WithError(err).Warn("Assessment history disabled: migrations failed")
		db.Close()
		return nil, nil
	}

	return repository.NewAssessmentRepository(db.Pool, logger), db.Close
}

// newCitationResolver builds the two-tier citation service. Lookups are
// opt-in via PubMed contact details; the Redis tier is skipped when the
// server is unreachable.
func newCitationResolver(cfg *domain.Config, logger *logrus.Logger) domain.CitationResolver {
	pm := cfg.ExternalAPI.PubMed
	if pm.APIKey == "" && pm.Email == "" {
		logger.Info("Citation lookups disabled: no PubMed contact details configured")
		return nil
	}

	var redisCache *external.CitationCache
	if cfg.Cache.RedisURL != "" {
		cache, err := external.NewCitationCache(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis citation tier disabled")
		} else {
			redisCache = cache
		}
	}

	pubmed := external.NewResilientPubMedClient(external.NewPubMedClient(pm), logger)
	citations, err := service.NewCitationService(service.CitationServiceConfig{
		RedisCacheTTL: cfg.Cache.DefaultTTL,
	}, pubmed, redisCache, logger)
	if err != nil {
		logger.WithError(err).Warn("Citation lookups disabled")
		return nil
	}
	return citations
}
