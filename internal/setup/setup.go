// Package setup provides setup and configuration utilities for the PRIME-CVD
// MCP server.
package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/prime-cvd-server/internal/casestore"
	"github.com/prime-cvd-server/internal/config"
)

// serverKey is the entry name used in the Claude Desktop config file.
const serverKey = "prime-cvd"

// dataDirEnv is the environment variable the server reads its data directory
// from; the same name goes into the generated client configuration.
const dataDirEnv = "PRIME_CVD_DATA_DIR"

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// SetupOptions contains options for the setup process.
type SetupOptions struct {
	BinaryPath  string // Path to the server binary
	DataDir     string // Data directory for the server
	AutoConfirm bool   // Skip confirmation prompts
}

// GetClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func GetClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		// Try XDG config first, then fallback
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "Claude")
		} else {
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig loads the existing Claude Desktop configuration.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &ClaudeDesktopConfig{
				MCPServers: make(map[string]MCPServerConfig),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ClaudeDesktopConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]MCPServerConfig)
	}

	return &cfg, nil
}

// SaveClaudeDesktopConfig saves the configuration to the Claude Desktop config file.
func SaveClaudeDesktopConfig(configPath string, cfg *ClaudeDesktopConfig) error {
	// Ensure directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigureClaudeDesktop adds or updates the PRIME-CVD MCP server in Claude
// Desktop config.
func ConfigureClaudeDesktop(opts SetupOptions) error {
	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		return err
	}

	cfg, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return err
	}

	// Determine binary path
	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		// Try to find the binary in common locations
		binaryPath, err = findBinary()
		if err != nil {
			return fmt.Errorf("could not find server binary: %w", err)
		}
	}

	// Create server configuration
	serverConfig := MCPServerConfig{
		Command: binaryPath,
		Args:    []string{},
		Env:     make(map[string]string),
	}

	// Add environment variables
	if opts.DataDir != "" {
		serverConfig.Env[dataDirEnv] = opts.DataDir
	}

	// Add to config
	cfg.MCPServers[serverKey] = serverConfig

	// Save config
	if err := SaveClaudeDesktopConfig(configPath, cfg); err != nil {
		return err
	}

	return nil
}

// findBinary attempts to find the server binary in common locations.
func findBinary() (string, error) {
	const binaryName = "mcp-server"

	// Check common locations
	locations := []string{
		// Current directory
		"./" + binaryName,
		// Build directory
		"./build/" + binaryName,
		// User's local bin
		filepath.Join(os.Getenv("HOME"), ".local", "bin", binaryName),
		// System paths
		"/usr/local/bin/" + binaryName,
	}

	// Also check PATH
	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			absPath, err := filepath.Abs(loc)
			if err != nil {
				return loc, nil
			}
			return absPath, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", binaryName)
}

// Status represents the current setup status.
type Status struct {
	ClaudeDesktopConfigured bool
	ClaudeDesktopPath       string
	ServerConfigured        bool
	ServerPath              string
	DataDir                 string
	Issues                  []string
}

// GetStatus checks the current setup status.
func GetStatus() (*Status, error) {
	status := &Status{
		Issues: []string{},
	}

	// Check Claude Desktop config
	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not determine Claude Desktop config path: %v", err))
	} else {
		status.ClaudeDesktopPath = configPath

		cfg, err := LoadClaudeDesktopConfig(configPath)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Could not load Claude Desktop config: %v", err))
		} else {
			if serverConfig, ok := cfg.MCPServers[serverKey]; ok {
				status.ClaudeDesktopConfigured = true
				status.ServerConfigured = true
				status.ServerPath = serverConfig.Command

				// Check if binary exists
				if _, err := os.Stat(serverConfig.Command); os.IsNotExist(err) {
					status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", serverConfig.Command))
				}

				// Get data dir from env
				if dataDir, ok := serverConfig.Env[dataDirEnv]; ok {
					status.DataDir = dataDir
				}
			}
		}
	}

	// Check default data directory
	if status.DataDir == "" {
		status.DataDir = GetDefaultDataDir()
	}

	// Check if data directory exists
	if _, err := os.Stat(status.DataDir); os.IsNotExist(err) {
		status.Issues = append(status.Issues, fmt.Sprintf("Data directory does not exist: %s", status.DataDir))
	}

	return status, nil
}

// Validate checks if the current setup is valid and functional.
func Validate() (bool, []string) {
	var issues []string

	// Check Claude Desktop config
	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		issues = append(issues, fmt.Sprintf("Cannot find Claude Desktop config: %v", err))
		return false, issues
	}

	cfg, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		issues = append(issues, fmt.Sprintf("Cannot load Claude Desktop config: %v", err))
		return false, issues
	}

	serverConfig, ok := cfg.MCPServers[serverKey]
	if !ok {
		issues = append(issues, "PRIME-CVD server not configured in Claude Desktop")
		return false, issues
	}

	// Check binary exists and is executable
	if _, err := os.Stat(serverConfig.Command); os.IsNotExist(err) {
		issues = append(issues, fmt.Sprintf("Server binary not found: %s", serverConfig.Command))
	} else {
		// Try to execute with --version or --help
		cmd := exec.Command(serverConfig.Command, "--help")
		if err := cmd.Run(); err != nil {
			// This might fail if there's no --help flag, which is OK
			// Just check if the file is executable
			info, err := os.Stat(serverConfig.Command)
			if err == nil && info.Mode()&0111 == 0 {
				issues = append(issues, fmt.Sprintf("Server binary is not executable: %s", serverConfig.Command))
			}
		}
	}

	// Check data directory
	dataDir := serverConfig.Env[dataDirEnv]
	if dataDir == "" {
		dataDir = GetDefaultDataDir()
	}

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		// Not a critical error - will be created on first run
		issues = append(issues, fmt.Sprintf("Data directory will be created on first run: %s", dataDir))
	} else if issue := probeCaseStore(dataDir); issue != "" {
		issues = append(issues, issue)
	}

	return len(issues) == 0 || allWarnings(issues), issues
}

// probeCaseStore opens the saved-case database and runs a count query against
// it. An empty return means the store round trip succeeded.
func probeCaseStore(dataDir string) string {
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = dataDir

	store, err := casestore.NewSQLiteStore(cfg.CaseDBPath())
	if err != nil {
		return fmt.Sprintf("Case store cannot be opened: %v", err)
	}
	defer store.Close()

	if _, err := store.Count(context.Background()); err != nil {
		return fmt.Sprintf("Case store probe failed: %v", err)
	}
	return ""
}

// allWarnings returns true if all issues are just warnings (not errors).
func allWarnings(issues []string) bool {
	for _, issue := range issues {
		if !strings.Contains(issue, "will be created") {
			return false
		}
	}
	return true
}

// GetDefaultDataDir returns the default data directory path.
func GetDefaultDataDir() string {
	return config.DefaultLiteConfig().DataDir
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir(dataDir string) error {
	cfg := config.DefaultLiteConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg.EnsureDataDir()
}
