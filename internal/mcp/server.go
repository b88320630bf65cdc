// Package mcp exposes the risk engine over the Model Context Protocol.
// The server is self-contained: SQLite for saved cases, an in-memory tool
// result cache, and no required external services.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/cache"
	"github.com/prime-cvd-server/internal/casestore"
	litecfg "github.com/prime-cvd-server/internal/config"
	"github.com/prime-cvd-server/internal/domain"
	"github.com/prime-cvd-server/internal/report"
	"github.com/prime-cvd-server/internal/service"
	"github.com/prime-cvd-server/pkg/external"
)

// Tool names as they appear to MCP clients.
const (
	toolAssessRisk       = "assess_cvd_risk"
	toolProjectTreatment = "project_treatment_effect"
	toolProjectLipid     = "project_lipid_effect"
	toolValidatePlan     = "validate_therapy_plan"
	toolClassifyTier     = "classify_risk_tier"
	toolSaveCase         = "save_case"
	toolGetCase          = "get_case"
	toolListCases        = "list_cases"
	toolDeleteCase       = "delete_case"
	toolEvidenceTable    = "get_evidence_table"
	toolGenerateReport   = "generate_report"
	toolServerStats      = "get_server_stats"
)

// serverName and serverVersion identify this server to MCP clients.
const (
	serverName    = "prime-cvd-server"
	serverVersion = "v" + domain.EngineVersion
)

// Server is the standalone MCP server. It owns the assessor, the saved-case
// store and the tool result cache, and registers one handler per tool.
type Server struct {
	config    *litecfg.LiteConfig
	mcpServer *mcp.Server
	assessor  domain.RiskAssessor
	cases     casestore.Store
	citations domain.CitationResolver
	reports   *report.Builder
	toolCache *cache.ToolResultCache
	logger    *logrus.Logger
	started   time.Time
}

// Option is a functional option for Server.
type Option func(*Server) error

// WithCaseStore sets a custom case store.
func WithCaseStore(store casestore.Store) Option {
	return func(s *Server) error {
		s.cases = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithAssessor sets a custom risk assessor.
func WithAssessor(assessor domain.RiskAssessor) Option {
	return func(s *Server) error {
		s.assessor = assessor
		return nil
	}
}

// WithCitationResolver sets a custom citation resolver.
func WithCitationResolver(resolver domain.CitationResolver) Option {
	return func(s *Server) error {
		s.citations = resolver
		return nil
	}
}

// NewServer creates a new MCP server instance. It requires no external
// databases: saved cases go to SQLite under the configured data directory,
// and tool results are cached in memory.
func NewServer(cfg *litecfg.LiteConfig, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mcp server: config: %w", domain.ErrMissingInput)
	}

	// Create server with default logger
	server := &Server{
		config:  cfg,
		logger:  logrus.New(),
		started: time.Now(),
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

	// Tool result cache, in-memory tier only
	server.toolCache = cache.NewToolResultCache(cache.Config{
		DefaultTTL: cfg.CacheTTL,
		Enabled:    true,
		Logger:     server.logger,
	})

	// Open the saved-case store if not provided
	if server.cases == nil {
		store, err := casestore.NewSQLiteStore(cfg.CaseDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open case store: %w", err)
		}
		server.cases = store
	}

	// Citation resolution is opt-in: the engine and evidence tables work fully
	// offline, and PubMed lookups only happen when contact details are set.
	if server.citations == nil && (cfg.PubMedAPIKey != "" || cfg.PubMedEmail != "") {
		resolver, err := createCitationResolver(cfg, server.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create citation resolver: %w", err)
		}
		server.citations = resolver
	}

	if server.assessor == nil {
		server.assessor = service.NewAssessor(server.logger, server.citations)
	}
	server.reports = report.NewBuilder(server.logger)

	// Create server info
	serverInfo := &mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}

	// Create MCP server and register tools
	mcpServer := mcp.NewServer(serverInfo, nil)
	server.mcpServer = mcpServer
	server.registerTools(mcpServer)

	server.logger.Info("MCP server initialized successfully")
	return server, nil
}

// registerTools registers every tool with the MCP SDK.
func (s *Server) registerTools(mcpServer *mcp.Server) {
	tools := []struct {
		name        string
		description string
		handler     mcp.ToolHandler
	}{
		{toolAssessRisk, "Run a complete cardiovascular assessment: baseline risk, horizon adjustment, therapy conflicts, treatment and lipid projections, risk tier and guidance.", s.handleAssessRisk},
		{toolProjectTreatment, "Project the combined relative and absolute risk reduction of a therapy plan against the baseline risk.", s.handleProjectTreatment},
		{toolProjectLipid, "Project the LDL-C trajectory under lipid-lowering therapy and its attributable risk effect.", s.handleProjectLipid},
		{toolValidatePlan, "Check a therapy plan for same-class drug conflicts. Advisory only; conflicts never block an assessment.", s.handleValidatePlan},
		{toolClassifyTier, "Classify a projected risk percentage into a risk tier with its guidance block.", s.handleClassifyTier},
		{toolSaveCase, "Save or update a patient case in the local case store.", s.handleSaveCase},
		{toolGetCase, "Retrieve a saved case by ID.", s.handleGetCase},
		{toolListCases, "List saved cases, most recently updated first.", s.handleListCases},
		{toolDeleteCase, "Delete a saved case by ID.", s.handleDeleteCase},
		{toolEvidenceTable, "Return the evidence tables backing the engine: treatment effects, LDL therapies, lifestyle interventions and key trial references.", s.handleGetEvidenceTable},
		{toolGenerateReport, "Generate a clinician-facing markdown report for an assessment, optionally written to the report directory.", s.handleGenerateReport},
		{toolServerStats, "Return server uptime, cache performance and case store counters.", s.handleGetServerStats},
	}

	for _, t := range tools {
		toolDef := &mcp.Tool{
			Name:        t.name,
			Description: t.description,
		}
		mcpServer.AddTool(toolDef, t.handler)
		s.logger.WithField("tool_name", t.name).Debug("Registered MCP tool")
	}

	s.logger.WithField("tool_count", len(tools)).Info("Successfully registered all tools")
}

// Start runs the MCP server until the context is cancelled or the transport
// closes.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting PRIME-CVD MCP server...")

	var mcpTransport mcp.Transport
	switch s.config.Transport {
	case "stdio":
		mcpTransport = &mcp.StdioTransport{}
	default:
		s.logger.WithField("transport_type", s.config.Transport).Warn("Unsupported transport, falling back to stdio")
		mcpTransport = &mcp.StdioTransport{}
	}

	if err := s.mcpServer.Run(ctx, mcpTransport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *Server) Close() error {
	if s.cases != nil {
		if err := s.cases.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close case store")
			return err
		}
	}
	return nil
}

// GetCaseStore returns the case store for external access.
func (s *Server) GetCaseStore() casestore.Store {
	return s.cases
}

// GetToolCache returns the tool result cache for external access.
func (s *Server) GetToolCache() *cache.ToolResultCache {
	return s.toolCache
}

// createCitationResolver wires a PubMed-backed citation service with an
// in-memory cache tier only (no Redis).
func createCitationResolver(cfg *litecfg.LiteConfig, logger *logrus.Logger) (domain.CitationResolver, error) {
	pubmed := external.NewPubMedClient(domain.PubMedConfig{
		BaseURL:   "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
		APIKey:    cfg.PubMedAPIKey,
		Email:     cfg.PubMedEmail,
		RateLimit: 3,
		Timeout:   30 * time.Second,
	})

	return service.NewCitationService(service.CitationServiceConfig{
		MemoryCacheTTL: cfg.CacheTTL,
		MaxMemorySize:  cfg.CacheMaxItems,
	}, external.NewResilientPubMedClient(pubmed, logger), nil, logger)
}
