// Package main provides the entry point for the PRIME-CVD MCP server.
// The server requires no external services - saved cases live in SQLite and
// tool results are cached in memory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prime-cvd-server/internal/config"
	"github.com/prime-cvd-server/internal/mcp"
	"github.com/prime-cvd-server/internal/setup"
)

func main() {
	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI()
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	log.Printf("Starting PRIME-CVD MCP server with transport: %s", cfg.Transport)
	log.Printf("Data directory: %s", cfg.DataDir)

	// Create MCP server
	server, err := mcp.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start MCP server
	if err := server.Start(ctx); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}

	log.Println("PRIME-CVD MCP server stopped")
}
