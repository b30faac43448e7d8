// Package cmd provides the CLI commands for the Pokédex assistant.
//
// Commands:
//   - serve: HTTP API server with NDJSON chat streaming
//   - mcp: Model Context Protocol server exposing the tools over stdio
//   - ask: one-shot question answered on stdout
//
// Signal handling and graceful shutdown are implemented for all commands
// via context cancellation.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/lucasdpassos/pokedex-assistant/internal/config"
)

// Execute is the main entry point for the CLI application.
func Execute() error {
	loadDotEnv()

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "mcp":
		return runMCP()
	case "ask":
		return runAsk(os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// loadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment are never overridden.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}
}

// loadConfig loads and validates configuration, turning a missing API key
// into actionable guidance on stderr.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrMissingAPIKey) {
		fmt.Fprintln(os.Stderr, "Error: ANTHROPIC_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Please run:")
		fmt.Fprintln(os.Stderr, "  export ANTHROPIC_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://console.anthropic.com/settings/keys")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Pokédex Assistant - Pokémon Q&A powered by the Anthropic API")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pokedex-assistant serve [addr]    Start the HTTP API server (default: :8080)")
	fmt.Println("  pokedex-assistant mcp             Start the MCP server (for Claude Desktop/Cursor)")
	fmt.Println("  pokedex-assistant ask <question>  Ask a single question and exit")
	fmt.Println("  pokedex-assistant --version       Show version information")
	fmt.Println("  pokedex-assistant --help          Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  ANTHROPIC_API_KEY     Required: Anthropic API key")
	fmt.Println("  POKEDEX_MODEL_NAME    Optional: override the model")
	fmt.Println("  POKEDEX_LOG_LEVEL     Optional: debug, info, warn, error")
	fmt.Println("  POKEDEX_LOG_FORMAT    Optional: text, json")
	fmt.Println()
	fmt.Println("Configuration is also read from ~/.pokedex/config.yaml and a local .env file.")
}
