package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lucasdpassos/pokedex-assistant/internal/app"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/mcp"
)

// runMCP initializes and starts the MCP server on stdio transport.
// All logging goes to stderr; stdout is reserved for JSON-RPC frames.
func runMCP() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := log.New(log.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting mcp server", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server, err := mcp.NewServer(mcp.Config{
		Name:     "pokedex-assistant",
		Version:  AppVersion,
		Executor: a.Executor,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	logger.Info("mcp server ready", "transport", "stdio")

	if err := server.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}

	logger.Info("mcp server shut down gracefully")
	return nil
}
