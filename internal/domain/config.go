package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	CaseStore   CaseStoreConfig   `mapstructure:"case_store"`
	ExternalAPI ExternalAPIConfig `mapstructure:"external_api"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	MCP         MCPConfig         `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled     bool          `mapstructure:"tls_enabled"`
	CertFile       string        `mapstructure:"cert_file"`
	KeyFile        string        `mapstructure:"key_file"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
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
}

// CaseStoreConfig represents saved-case storage configuration
type CaseStoreConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	Path   string `mapstructure:"path"`   // sqlite database file
	URL    string `mapstructure:"url"`    // postgres connection URL
}

// ExternalAPIConfig represents external API configuration
type ExternalAPIConfig struct {
	PubMed PubMedConfig `mapstructure:"pubmed"`
}

// PubMedConfig represents PubMed API configuration
type PubMedConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Email      string        `mapstructure:"email"` // Required by NCBI
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// EngineConfig represents risk engine defaults and memoization settings
type EngineConfig struct {
	DefaultVariant string        `mapstructure:"default_variant"`
	DefaultHorizon string        `mapstructure:"default_horizon"`
	MemoEnabled    bool          `mapstructure:"memo_enabled"`
	MemoSize       int           `mapstructure:"memo_size"`
	MemoTTL        time.Duration `mapstructure:"memo_ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName     string        `mapstructure:"server_name"`
	ServerVersion  string        `mapstructure:"server_version"`
	TransportType  string        `mapstructure:"transport_type"` // "stdio", "http"
	HTTPPort       int           `mapstructure:"http_port"`
	HTTPHost       string        `mapstructure:"http_host"`
	MaxClients     int           `mapstructure:"max_clients"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EnableCaching  bool          `mapstructure:"enable_caching"`
	ToolCacheTTL   time.Duration `mapstructure:"tool_cache_ttl"`
}
