package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lucasdpassos/pokedex-assistant/internal/app"
	"github.com/lucasdpassos/pokedex-assistant/internal/chat"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
)

// runAsk answers a single question on stdout and exits.
func runAsk(args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("usage: pokedex-assistant ask <question>")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := log.New(log.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	return streamAnswer(ctx, os.Stdout, a.Driver, question)
}

// streamAnswer renders one conversation turn as plain text: text deltas are
// written as they arrive, tool activity stays silent, and a turn failure
// becomes the command's error.
func streamAnswer(ctx context.Context, w io.Writer, driver *chat.Driver, question string) error {
	for ev, err := range driver.Stream(ctx, question) {
		switch ev.Type {
		case chat.EventText:
			fmt.Fprint(w, ev.Content)
		case chat.EventError:
			fmt.Fprintln(w)
			if err != nil {
				return err
			}
			return errors.New(ev.Content)
		case chat.EventDone:
			fmt.Fprintln(w)
		}
	}
	return ctx.Err()
}
