package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/prime-cvd-server/internal/domain"
)

// Manager loads and validates the application configuration using Viper
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
	viper.AddConfigPath("/etc/prime-cvd-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("PRIME_CVD")
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
	viper.SetDefault("server.tls_enabled", false)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "prime_cvd")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	// Case store defaults
	viper.SetDefault("case_store.driver", "sqlite")
	viper.SetDefault("case_store.path", "cases.db")
	viper.SetDefault("case_store.url", "")

	// External API defaults
	viper.SetDefault("external_api.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/")
	viper.SetDefault("external_api.pubmed.timeout", "10s")
	viper.SetDefault("external_api.pubmed.rate_limit", 3)
	viper.SetDefault("external_api.pubmed.retry_count", 3)

	// Cache defaults
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	// Engine defaults
	viper.SetDefault("engine.default_variant", string(domain.COEFFICIENT_SUM))
	viper.SetDefault("engine.default_horizon", string(domain.TEN_YEAR))
	viper.SetDefault("engine.memo_enabled", true)
	viper.SetDefault("engine.memo_size", 1024)
	viper.SetDefault("engine.memo_ttl", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// MCP defaults
	viper.SetDefault("mcp.server_name", "prime-cvd-server")
	viper.SetDefault("mcp.server_version", "1.0.0")
	viper.SetDefault("mcp.transport_type", "stdio")
	viper.SetDefault("mcp.http_port", 8081)
	viper.SetDefault("mcp.http_host", "127.0.0.1")
	viper.SetDefault("mcp.max_clients", 10)
	viper.SetDefault("mcp.request_timeout", "30s")
	viper.SetDefault("mcp.enable_caching", true)
	viper.SetDefault("mcp.tool_cache_ttl", "15m")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetCaseStoreConfig returns saved-case storage configuration
func (m *Manager) GetCaseStoreConfig() *domain.CaseStoreConfig {
	return &m.config.CaseStore
}

// GetExternalAPIConfig returns external API configuration
func (m *Manager) GetExternalAPIConfig() *domain.ExternalAPIConfig {
	return &m.config.ExternalAPI
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetCacheConfig returns cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// GetEngineConfig returns risk engine configuration
func (m *Manager) GetEngineConfig() *domain.EngineConfig {
	return &m.config.Engine
}

// GetMCPConfig returns MCP server configuration
func (m *Manager) GetMCPConfig() *domain.MCPConfig {
	return &m.config.MCP
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

	// Validate case store configuration
	switch config.CaseStore.Driver {
	case "sqlite":
		if config.CaseStore.Path == "" {
			return fmt.Errorf("case store path is required for sqlite driver")
		}
	case "postgres":
		if config.CaseStore.URL == "" {
			return fmt.Errorf("case store URL is required for postgres driver")
		}
	default:
		return fmt.Errorf("invalid case store driver: %s", config.CaseStore.Driver)
	}

	// Validate external API URLs
	if config.ExternalAPI.PubMed.BaseURL == "" {
		return fmt.Errorf("PubMed base URL is required")
	}

	// Validate cache configuration
	if config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required")
	}

	// Validate engine defaults
	if !domain.ModelVariant(config.Engine.DefaultVariant).IsValid() {
		return fmt.Errorf("invalid default model variant: %s", config.Engine.DefaultVariant)
	}
	if !domain.RiskHorizon(config.Engine.DefaultHorizon).IsValid() {
		return fmt.Errorf("invalid default risk horizon: %s", config.Engine.DefaultHorizon)
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

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database connection string in URL form, as the
// migration tooling requires.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     db.Database,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	return u.String()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
