// Package api exposes the assistant over HTTP: a streaming NDJSON chat
// endpoint plus orchestrator health and metrics, behind a middleware stack
// for recovery, request IDs, logging, CORS and per-client rate limiting.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/chat"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/tools"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	defaultRateLimitRPS    = 5.0
	defaultRateLimitBurst  = 10
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// Config contains configuration for creating the HTTP server.
type Config struct {
	Addr            string
	Driver          *chat.Driver    // Required
	Executor        *tools.Executor // Required: backs /health and /metrics
	Logger          log.Logger      // Required
	CORSOrigins     []string        // Allowed origins for CORS
	TrustProxy      bool            // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateLimitRPS    float64         // Per-IP token refill per second (0 = default 5)
	RateLimitBurst  int             // Per-IP burst size (0 = default 10)
	ShutdownTimeout time.Duration   // Drain window on shutdown (0 = default 10s)
}

func (c *Config) validate() error {
	if c.Driver == nil {
		return errors.New("chat driver is required")
	}
	if c.Executor == nil {
		return errors.New("tool executor is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Server is the JSON API HTTP server.
type Server struct {
	cfg    Config
	http   *http.Server
	logger log.Logger
}

// New creates a server with all routes and middleware configured.
func New(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = defaultRateLimitRPS
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	logger := cfg.Logger.With("component", "api")

	ch := &chatHandler{driver: cfg.Driver, logger: logger}
	hh := &healthHandler{exec: cfg.Executor, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", ch.stream)
	mux.HandleFunc("GET /api/v1/health", hh.health)
	mux.HandleFunc("GET /api/v1/metrics", hh.metrics)

	rl := newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Liveness probe stays outside the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	})
	topMux.Handle("/", handler)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           topMux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
	logger.Info("api server initialized", "addr", cfg.Addr)
	return s, nil
}

// Handler returns the fully wired handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run starts the listener and blocks until ctx is canceled or the listener
// fails. On cancellation, in-flight requests are drained for up to
// ShutdownTimeout before the server returns.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.ListenAndServe() }()

	s.logger.Info("api server listening", "addr", s.cfg.Addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	<-errCh
	return nil
}
