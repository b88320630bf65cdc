// Package config provides configuration management for the risk engine
// binaries. This file contains the lightweight configuration for standalone
// MCP operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// API settings
	PubMedAPIKey string // Optional: NCBI API key for higher rate limits
	PubMedEmail  string // Optional: contact email NCBI asks heavy users to send

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".prime-cvd")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		Transport:     "stdio",
		HTTPPort:      8080,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directory
	if v := os.Getenv("PRIME_CVD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Cache settings
	if v := os.Getenv("PRIME_CVD_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("PRIME_CVD_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// PubMed access
	cfg.PubMedAPIKey = os.Getenv("PUBMED_API_KEY")
	cfg.PubMedEmail = os.Getenv("PUBMED_EMAIL")

	// Transport
	if v := os.Getenv("PRIME_CVD_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("PRIME_CVD_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	// Logging
	if v := os.Getenv("PRIME_CVD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PRIME_CVD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// CaseDBPath returns the path to the saved-case SQLite database.
func (c *LiteConfig) CaseDBPath() string {
	return filepath.Join(c.DataDir, "cases.db")
}

// ExportDir returns the directory for JSON case exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// ReportDir returns the directory for generated markdown reports.
func (c *LiteConfig) ReportDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(c.ExportDir(), 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ReportDir(), 0755)
}
