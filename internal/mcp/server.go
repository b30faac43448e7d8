// Package mcp exposes the pokedex tools over the Model Context Protocol so
// MCP clients (editors, desktop assistants) can call them directly without
// going through the conversation driver. Every call still runs the full
// execution pipeline: validation, caching, rate limits, retries and metrics.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/pokedex"
	"github.com/lucasdpassos/pokedex-assistant/internal/tools"
)

// Server wraps the MCP SDK server around the tool executor.
type Server struct {
	mcpServer *mcp.Server
	exec      *tools.Executor
	logger    log.Logger
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name     string
	Version  string
	Executor *tools.Executor
	Logger   log.Logger
}

// NewServer creates a new MCP server. The executor must already have the
// pokedex tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		exec:      cfg.Executor,
		logger:    logger.With("component", "mcp"),
		name:      cfg.Name,
		version:   cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport.
// This is a blocking call that handles all MCP protocol communication.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server running", "name", s.name, "version", s.version)
	return s.mcpServer.Run(ctx, transport)
}

// PokemonInfoInput defines the input schema for the pokemon_info tool.
type PokemonInfoInput struct {
	Name string `json:"name" jsonschema:"Pokémon name, e.g. pikachu or Mr. Mime"`
}

// TeamAnalysisInput defines the input schema for the team_analysis tool.
type TeamAnalysisInput struct {
	Names []string `json:"names" jsonschema:"One to six Pokémon names"`
}

// registerTools registers both pokedex tools to the MCP server, reusing the
// descriptions from their executor definitions.
func (s *Server) registerTools() error {
	registered := make(map[string]tools.Definition)
	for _, def := range s.exec.Definitions() {
		registered[def.Name] = def
	}
	for _, name := range []string{pokedex.InfoToolName, pokedex.TeamToolName} {
		if _, ok := registered[name]; !ok {
			return fmt.Errorf("tool %q is not registered with the executor", name)
		}
	}

	infoSchema, err := jsonschema.For[PokemonInfoInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", pokedex.InfoToolName, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        pokedex.InfoToolName,
		Description: registered[pokedex.InfoToolName].Description,
		InputSchema: infoSchema,
	}, s.PokemonInfo)

	teamSchema, err := jsonschema.For[TeamAnalysisInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", pokedex.TeamToolName, err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        pokedex.TeamToolName,
		Description: registered[pokedex.TeamToolName].Description,
		InputSchema: teamSchema,
	}, s.TeamAnalysis)

	s.logger.Info("mcp tools registered", "count", 2)
	return nil
}

// PokemonInfo handles the pokemon_info MCP tool call.
func (s *Server) PokemonInfo(ctx context.Context, _ *mcp.CallToolRequest, in PokemonInfoInput) (*mcp.CallToolResult, any, error) {
	res := s.exec.Execute(ctx, pokedex.InfoToolName, map[string]any{"name": in.Name})
	return resultToMCP(res), nil, nil
}

// TeamAnalysis handles the team_analysis MCP tool call.
func (s *Server) TeamAnalysis(ctx context.Context, _ *mcp.CallToolRequest, in TeamAnalysisInput) (*mcp.CallToolResult, any, error) {
	res := s.exec.Execute(ctx, pokedex.TeamToolName, map[string]any{"names": in.Names})
	return resultToMCP(res), nil, nil
}

// resultToMCP folds an execution result into an MCP tool result. Failures
// become error results carrying the fault code and details in the text,
// matching how the conversation driver reports tool failures to the model.
func resultToMCP(res tools.Result) *mcp.CallToolResult {
	if !res.Success {
		errorText := fmt.Sprintf("Error [%s]: %s", res.Error.Code, res.Error.Message)
		if res.Error.Details != nil {
			if detailsJSON, err := json.Marshal(res.Error.Details); err == nil {
				errorText += fmt.Sprintf("\nDetails: %s", detailsJSON)
			}
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: errorText}},
			IsError: true,
		}
	}

	payload, err := json.Marshal(res.Data)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: `{"error":"unserializable tool output"}`}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}
}
