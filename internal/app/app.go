// Package app provides application initialization and dependency wiring.
//
// Setup builds every component in dependency order and returns an App
// container; call Close to release background work. The HTTP server, the
// MCP server, and the one-shot ask command all share this wiring, so the
// tool pipeline behaves the same under every entry point.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/lucasdpassos/pokedex-assistant/internal/chat"
	"github.com/lucasdpassos/pokedex-assistant/internal/config"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/model"
	"github.com/lucasdpassos/pokedex-assistant/internal/model/anthropic"
	"github.com/lucasdpassos/pokedex-assistant/internal/pokedex"
	"github.com/lucasdpassos/pokedex-assistant/internal/tools"
)

// App is the application container.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Executor *tools.Executor
	Pokedex  *pokedex.Client
	Model    model.Client
	Driver   *chat.Driver

	// cancel stops the executor's cache janitor.
	cancel context.CancelFunc
}

// Setup creates and initializes the application. The returned App owns a
// background cache janitor started on ctx; call Close to stop it.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release anything already started.
	defer func() {
		if retErr != nil {
			_ = a.Close()
		}
	}()

	janitorCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.Executor = provideExecutor(janitorCtx, cfg, logger)

	var err error
	a.Pokedex, err = providePokedex(a.Executor, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Model, err = provideModel(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Driver, err = provideDriver(a, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("application initialized",
		"model", cfg.ModelName,
		"tools", len(a.Executor.Definitions()),
	)
	return a, nil
}

// Close stops background work started by Setup. Safe to call more than once.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

// provideExecutor builds the tool executor and starts its cache janitor.
func provideExecutor(ctx context.Context, cfg *config.Config, logger log.Logger) *tools.Executor {
	exec := tools.New(tools.Config{
		DefaultTimeout:     cfg.ToolTimeout,
		DefaultMaxAttempts: cfg.ToolMaxAttempts,
		DefaultBackoff:     cfg.ToolBackoff,
		CacheCapacity:      cfg.CacheCapacity,
		CacheTTL:           cfg.CacheTTL,
		ReferenceTTL:       cfg.CacheReferenceTTL,
		TeamTTL:            cfg.CacheTeamTTL,
		CleanupInterval:    cfg.CacheCleanupInterval,
		EnableRateLimiting: cfg.ToolRateLimits,
	}, logger)
	exec.StartCleanup(ctx)
	return exec
}

// providePokedex builds the PokéAPI client and registers both tools with
// the executor.
func providePokedex(exec *tools.Executor, cfg *config.Config, logger log.Logger) (*pokedex.Client, error) {
	client := pokedex.NewClient(pokedex.Config{
		BaseURL: cfg.PokeAPIBaseURL,
		Timeout: cfg.PokeAPITimeout,
	}, logger)
	if err := pokedex.Register(exec, client, logger); err != nil {
		return nil, fmt.Errorf("registering pokedex tools: %w", err)
	}
	return client, nil
}

// provideModel builds the Anthropic streaming client.
func provideModel(cfg *config.Config, logger log.Logger) (model.Client, error) {
	client, err := anthropic.New(anthropic.Config{
		APIKey: cfg.APIKey,
		Model:  cfg.ModelName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating anthropic client: %w", err)
	}
	return client, nil
}

// provideDriver builds the conversation driver on top of the executor.
func provideDriver(a *App, cfg *config.Config) (*chat.Driver, error) {
	driver, err := chat.New(chat.Config{
		Model:         a.Model,
		Executor:      a.Executor,
		Logger:        a.Logger,
		SystemPrompt:  cfg.SystemPrompt,
		MaxTokens:     int64(cfg.MaxTokens),
		MaxToolRounds: cfg.MaxToolRounds,
	})
	if err != nil {
		return nil, fmt.Errorf("creating conversation driver: %w", err)
	}
	return driver, nil
}
