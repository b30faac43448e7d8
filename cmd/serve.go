package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lucasdpassos/pokedex-assistant/internal/api"
	"github.com/lucasdpassos/pokedex-assistant/internal/app"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr, err := parseServeAddr(cfg.ServerAddr, os.Args[2:])
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting http api server", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server, err := api.New(api.Config{
		Addr:           addr,
		Driver:         a.Driver,
		Executor:       a.Executor,
		Logger:         logger,
		CORSOrigins:    cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	return server.Run(ctx)
}
