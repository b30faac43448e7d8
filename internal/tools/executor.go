package tools

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/cache"
	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
)

// Executor defaults applied by Config.withDefaults.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxAttempts     = 3
	DefaultBackoff         = 500 * time.Millisecond
	DefaultCacheTTL        = 5 * time.Minute
	DefaultReferenceTTL    = 6 * time.Hour
	DefaultTeamTTL         = 10 * time.Minute
	DefaultCleanupInterval = time.Minute
)

// Config carries the Executor-wide defaults. Per-tool Definition settings
// override Timeout and Retry; the TTL tier is chosen by tool category.
type Config struct {
	DefaultTimeout     time.Duration
	DefaultMaxAttempts int
	DefaultBackoff     time.Duration

	CacheCapacity   int
	CacheTTL        time.Duration
	ReferenceTTL    time.Duration
	TeamTTL         time.Duration
	CleanupInterval time.Duration

	EnableRateLimiting bool
}

func (c Config) withDefaults() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.DefaultMaxAttempts <= 0 {
		c.DefaultMaxAttempts = DefaultMaxAttempts
	}
	if c.DefaultBackoff <= 0 {
		c.DefaultBackoff = DefaultBackoff
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.ReferenceTTL <= 0 {
		c.ReferenceTTL = DefaultReferenceTTL
	}
	if c.TeamTTL <= 0 {
		c.TeamTTL = DefaultTeamTTL
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

type registration struct {
	def     Definition
	handler Handler
}

// Executor is the tool registry and orchestrator. Construct one per process
// with New and share it; all public methods are safe for concurrent use.
type Executor struct {
	cfg    Config
	logger log.Logger

	mu    sync.RWMutex
	tools map[string]registration

	store   *cache.Store
	limiter *windowLimiter

	metricsMu      sync.Mutex
	totalRequests  int64
	totalSuccesses int64
	requestCounts  map[string]int64
	errorCounts    map[string]int64
	totalExecTime  time.Duration
}

// New creates an Executor with the given configuration. Zero-valued Config
// fields fall back to the package defaults.
func New(cfg Config, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Executor{
		cfg:           cfg,
		logger:        logger.With("component", "executor"),
		tools:         make(map[string]registration),
		store:         cache.NewStore(cfg.CacheCapacity, logger),
		limiter:       newWindowLimiter(),
		requestCounts: make(map[string]int64),
		errorCounts:   make(map[string]int64),
	}
}

// Register adds a tool. Re-registering a name overwrites the previous
// definition and handler. Returns an invalid-input fault when the
// definition is malformed or the handler is nil.
func (e *Executor) Register(def Definition, h Handler) error {
	if err := def.validate(); err != nil {
		return err
	}
	if h == nil {
		return fault.InvalidInput("invalid tool definition", []string{"handler"})
	}

	e.mu.Lock()
	e.tools[def.Name] = registration{def: def, handler: h}
	e.mu.Unlock()

	e.logger.Info("tool registered",
		"tool", def.Name,
		"version", def.Version,
		"category", def.Category)
	return nil
}

// Definitions returns the registered tool definitions sorted by name.
func (e *Executor) Definitions() []Definition {
	e.mu.RLock()
	defs := make([]Definition, 0, len(e.tools))
	for _, reg := range e.tools {
		defs = append(defs, reg.def)
	}
	e.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs one tool invocation through the full orchestration pipeline
// and always returns a Result; failures are carried in Result.Error.
func (e *Executor) Execute(ctx context.Context, tool string, input map[string]any, opts ...ExecOption) Result {
	started := time.Now()
	ec := newExecutionContext(tool, input, opts...)
	logger := e.logger.With("tool", tool, "request_id", ec.RequestID)

	e.recordRequest(tool)

	reg, ok := e.lookup(tool)
	if !ok {
		return e.fail(logger, tool, started, 0, "", fault.ToolNotFound(tool))
	}
	version := reg.def.Version

	if e.cfg.EnableRateLimiting && reg.def.RateLimit != nil {
		if err := e.limiter.allow(tool, reg.def.RateLimit.MaxRequests, reg.def.RateLimit.Window); err != nil {
			return e.fail(logger, tool, started, 0, version, fault.Coerce(err))
		}
	}

	if err := validateInput(reg.def.InputSchema, input); err != nil {
		return e.fail(logger, tool, started, 0, version, fault.Coerce(err))
	}
	if v, ok := reg.handler.(Validator); ok {
		if err := v.ValidateInput(input); err != nil {
			ferr := fault.Coerce(err)
			if ferr.Code != fault.CodeInvalidInput {
				ferr = fault.Wrap(err, fault.CodeInvalidInput, "input validation failed")
			}
			return e.fail(logger, tool, started, 0, version, ferr)
		}
	}

	key := cache.Key(tool, input)
	if cached, ok := e.store.Get(key); ok {
		logger.Debug("serving cached result")
		e.recordSuccess(tool, time.Since(started))
		return successResult(cached, started, 0, version, true)
	}

	output, attempts, err := e.executeWithRetries(ctx, reg, ec, logger)
	if err != nil {
		return e.fail(logger, tool, started, attempts, version, fault.Coerce(err))
	}

	e.store.Set(key, output, e.ttlFor(reg.def))
	e.recordSuccess(tool, time.Since(started))
	logger.Debug("tool executed", "attempts", attempts, "elapsed", time.Since(started))
	return successResult(output, started, attempts, version, false)
}

// executeWithRetries runs the handler up to the tool's attempt budget,
// sleeping the configured backoff between failures. The returned attempt
// count is the number of attempts actually made.
func (e *Executor) executeWithRetries(ctx context.Context, reg registration, ec ExecutionContext, logger log.Logger) (any, int, error) {
	maxAttempts := e.cfg.DefaultMaxAttempts
	backoff := e.cfg.DefaultBackoff
	exponential := false
	if reg.def.Retry != nil {
		maxAttempts = reg.def.Retry.MaxAttempts
		if reg.def.Retry.Backoff > 0 {
			backoff = reg.def.Retry.Backoff
		}
		exponential = reg.def.Retry.Exponential
	}
	timeout := e.cfg.DefaultTimeout
	if reg.def.Timeout > 0 {
		timeout = reg.def.Timeout
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		output, err := e.runOnce(ctx, reg, ec, timeout)
		if err == nil {
			return output, attempt, nil
		}
		lastErr = err

		// Caller cancellation is not retryable: the turn was abandoned.
		if ctx.Err() != nil {
			logger.Debug("execution abandoned", "attempt", attempt)
			return nil, attempt, ctx.Err()
		}

		// Invalid input is deterministic: the same input fails every attempt.
		if fault.IsCode(err, fault.CodeInvalidInput) {
			return nil, attempt, err
		}

		logger.Warn("tool attempt failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err)

		if attempt == maxAttempts {
			break
		}

		delay := backoff
		if exponential {
			delay = backoff << (attempt - 1)
		}
		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, maxAttempts, lastErr
}

// runOnce executes hooks and the handler under the attempt timeout. The
// handler races a deadline: on timeout its eventual completion is discarded
// and a timeout fault is reported.
func (e *Executor) runOnce(ctx context.Context, reg registration, ec ExecutionContext, timeout time.Duration) (any, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if h, ok := reg.handler.(Hooks); ok {
		if err := h.BeforeExecute(execCtx, ec); err != nil {
			return nil, fault.Wrap(err, fault.CodeExecutionFailed, "before-execute hook failed")
		}
	}

	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		output, err := reg.handler.Execute(execCtx, ec)
		done <- outcome{output: output, err: err}
	}()

	select {
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fault.Timeout(ec.Tool, timeout.String())
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if h, ok := reg.handler.(Hooks); ok {
			if err := h.AfterExecute(execCtx, ec, res.output); err != nil {
				return nil, fault.Wrap(err, fault.CodeExecutionFailed, "after-execute hook failed")
			}
		}
		return res.output, nil
	}
}

// ttlFor picks the cache TTL tier for a tool by its category.
func (e *Executor) ttlFor(def Definition) time.Duration {
	switch def.Category {
	case CategoryReference:
		return e.cfg.ReferenceTTL
	case CategoryTeam:
		return e.cfg.TeamTTL
	default:
		return e.cfg.CacheTTL
	}
}

// StartCleanup launches the periodic cache sweep. The goroutine exits when
// ctx is cancelled.
func (e *Executor) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.store.Cleanup()
			}
		}
	}()
}

// Metrics returns a snapshot of the cumulative counters.
func (e *Executor) Metrics() Metrics {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	requests := make(map[string]int64, len(e.requestCounts))
	for k, v := range e.requestCounts {
		requests[k] = v
	}
	errs := make(map[string]int64, len(e.errorCounts))
	for k, v := range e.errorCounts {
		errs[k] = v
	}
	return Metrics{
		TotalRequests:  e.totalRequests,
		TotalSuccesses: e.totalSuccesses,
		RequestCounts:  requests,
		ErrorCounts:    errs,
		TotalExecTime:  e.totalExecTime,
	}
}

// Health derives the current health verdict from metrics and cache state.
func (e *Executor) Health() Health {
	m := e.Metrics()

	e.mu.RLock()
	toolCount := len(e.tools)
	e.mu.RUnlock()

	return Health{
		Status: healthStatus(m),
		Details: HealthDetails{
			ToolCount:    toolCount,
			SuccessRate:  m.SuccessRate(),
			CacheHitRate: e.store.HitRate(),
			AvgExecTime:  m.AvgExecTime(),
		},
	}
}

func (e *Executor) lookup(tool string) (registration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	reg, ok := e.tools[tool]
	return reg, ok
}

func (e *Executor) fail(logger log.Logger, tool string, started time.Time, attempts int, version string, ferr *fault.Error) Result {
	logger.Warn("tool execution failed", "code", ferr.Code, "error", ferr.Message)
	e.recordError(tool, time.Since(started))
	return failureResult(ferr, started, attempts, version)
}

func (e *Executor) recordRequest(tool string) {
	e.metricsMu.Lock()
	e.totalRequests++
	e.requestCounts[tool]++
	e.metricsMu.Unlock()
}

func (e *Executor) recordSuccess(tool string, elapsed time.Duration) {
	e.metricsMu.Lock()
	e.totalSuccesses++
	e.totalExecTime += elapsed
	e.metricsMu.Unlock()
}

func (e *Executor) recordError(tool string, elapsed time.Duration) {
	e.metricsMu.Lock()
	e.errorCounts[tool]++
	e.totalExecTime += elapsed
	e.metricsMu.Unlock()
}
