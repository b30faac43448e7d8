package tools

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
	"github.com/lucasdpassos/pokedex-assistant/internal/log"
)

// hookedHandler records the order of hook and handler invocations.
type hookedHandler struct {
	mu        sync.Mutex
	calls     []string
	beforeErr error
	afterErr  error
}

func (h *hookedHandler) record(step string) {
	h.mu.Lock()
	h.calls = append(h.calls, step)
	h.mu.Unlock()
}

func (h *hookedHandler) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *hookedHandler) Execute(ctx context.Context, ec ExecutionContext) (any, error) {
	h.record("execute")
	return "ok", nil
}

func (h *hookedHandler) BeforeExecute(ctx context.Context, ec ExecutionContext) error {
	h.record("before")
	return h.beforeErr
}

func (h *hookedHandler) AfterExecute(ctx context.Context, ec ExecutionContext, output any) error {
	h.record("after")
	return h.afterErr
}

// validatedHandler layers a custom input check over a plain handler.
type validatedHandler struct {
	HandlerFunc
	validateErr error
}

func (h *validatedHandler) ValidateInput(input map[string]any) error {
	return h.validateErr
}

func echoHandler(calls *atomic.Int32) HandlerFunc {
	return func(ctx context.Context, ec ExecutionContext) (any, error) {
		if calls != nil {
			calls.Add(1)
		}
		return ec.Input, nil
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		def       Definition
		handler   Handler
		offending []string
	}{
		{
			name:    "valid definition",
			def:     Definition{Name: "pokemon_info", Version: "1.0.0"},
			handler: echoHandler(nil),
		},
		{
			name:      "empty name and version",
			def:       Definition{},
			handler:   echoHandler(nil),
			offending: []string{"name", "version"},
		},
		{
			name: "schema field without type",
			def: Definition{
				Name:        "pokemon_info",
				Version:     "1.0.0",
				InputSchema: map[string]Field{"name": {}},
			},
			handler:   echoHandler(nil),
			offending: []string{"input_schema.name.type"},
		},
		{
			name: "rate limit without window",
			def: Definition{
				Name:      "pokemon_info",
				Version:   "1.0.0",
				RateLimit: &RateLimit{MaxRequests: 5},
			},
			handler:   echoHandler(nil),
			offending: []string{"rate_limit"},
		},
		{
			name: "retry without attempts",
			def: Definition{
				Name:    "pokemon_info",
				Version: "1.0.0",
				Retry:   &RetryPolicy{Backoff: time.Second},
			},
			handler:   echoHandler(nil),
			offending: []string{"retry.max_attempts"},
		},
		{
			name:      "nil handler",
			def:       Definition{Name: "pokemon_info", Version: "1.0.0"},
			offending: []string{"handler"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			exec := New(Config{}, log.NewNop())
			err := exec.Register(tt.def, tt.handler)
			if len(tt.offending) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var ferr *fault.Error
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, fault.CodeInvalidInput, ferr.Code)
			assert.Equal(t, tt.offending, ferr.Details["fields"])
		})
	}
}

func TestRegisterOverwritesByName(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	require.NoError(t, exec.Register(
		Definition{Name: "pokemon_info", Version: "1.0.0"},
		HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) { return "v1", nil }),
	))
	require.NoError(t, exec.Register(
		Definition{Name: "pokemon_info", Version: "2.0.0"},
		HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) { return "v2", nil }),
	))

	defs := exec.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "2.0.0", defs[0].Version)

	res := exec.Execute(context.Background(), "pokemon_info", nil)
	require.True(t, res.Success)
	assert.Equal(t, "v2", res.Data)
	assert.Equal(t, "2.0.0", res.Meta.ToolVersion)
}

func TestDefinitionsSortedByName(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	for _, name := range []string{"type_chart", "pokemon_info", "team_analysis"} {
		require.NoError(t, exec.Register(Definition{Name: name, Version: "1.0.0"}, echoHandler(nil)))
	}

	defs := exec.Definitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	assert.Equal(t, []string{"pokemon_info", "team_analysis", "type_chart"}, names)
}

func TestExecuteCacheServesRepeatedInput(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	var calls atomic.Int32
	require.NoError(t, exec.Register(
		Definition{Name: "pokemon_info", Version: "1.0.0", Category: CategoryReference},
		echoHandler(&calls),
	))

	first := exec.Execute(context.Background(), "pokemon_info", map[string]any{"name": "pikachu"})
	require.True(t, first.Success)
	assert.Equal(t, 1, first.Meta.Attempts)
	assert.False(t, first.Meta.Cached)
	assert.Equal(t, "1.0.0", first.Meta.ToolVersion)

	second := exec.Execute(context.Background(), "pokemon_info", map[string]any{"name": "pikachu"})
	require.True(t, second.Success)
	assert.Equal(t, 0, second.Meta.Attempts, "cache hit skips execution")
	assert.True(t, second.Meta.Cached)
	assert.Equal(t, first.Data, second.Data)

	assert.Equal(t, int32(1), calls.Load(), "handler must not run for a cache hit")

	third := exec.Execute(context.Background(), "pokemon_info", map[string]any{"name": "eevee"})
	require.True(t, third.Success)
	assert.False(t, third.Meta.Cached, "different input misses")
	assert.Equal(t, int32(2), calls.Load())
}

func TestExecuteToolNotFound(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	res := exec.Execute(context.Background(), "ghost", nil)

	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.CodeToolNotFound, res.Error.Code)
	assert.Equal(t, 0, res.Meta.Attempts)
}

func TestExecuteSchemaValidation(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	var calls atomic.Int32
	require.NoError(t, exec.Register(Definition{
		Name:    "pokemon_info",
		Version: "1.0.0",
		InputSchema: map[string]Field{
			"name":  {Type: TypeString, Required: true},
			"level": {Type: TypeNumber},
		},
	}, echoHandler(&calls)))

	res := exec.Execute(context.Background(), "pokemon_info", map[string]any{"level": "high"})

	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.CodeInvalidInput, res.Error.Code)
	assert.Equal(t,
		[]string{"level (expected number)", "name (missing required field)"},
		res.Error.Details["fields"])
	assert.Zero(t, calls.Load(), "invalid input must not reach the handler")
}

func TestExecuteCustomValidator(t *testing.T) {
	t.Parallel()

	t.Run("fault passthrough", func(t *testing.T) {
		t.Parallel()
		exec := New(Config{}, log.NewNop())
		require.NoError(t, exec.Register(
			Definition{Name: "pokemon_info", Version: "1.0.0"},
			&validatedHandler{
				HandlerFunc: echoHandler(nil),
				validateErr: fault.InvalidInput("name must be lowercase", []string{"name"}),
			},
		))

		res := exec.Execute(context.Background(), "pokemon_info", map[string]any{"name": "Pikachu"})
		require.False(t, res.Success)
		assert.Equal(t, fault.CodeInvalidInput, res.Error.Code)
		assert.Equal(t, "name must be lowercase", res.Error.Message)
	})

	t.Run("plain error is classified as invalid input", func(t *testing.T) {
		t.Parallel()
		exec := New(Config{}, log.NewNop())
		require.NoError(t, exec.Register(
			Definition{Name: "pokemon_info", Version: "1.0.0"},
			&validatedHandler{
				HandlerFunc: echoHandler(nil),
				validateErr: errors.New("unsupported generation"),
			},
		))

		res := exec.Execute(context.Background(), "pokemon_info", map[string]any{"name": "pikachu"})
		require.False(t, res.Success)
		assert.Equal(t, fault.CodeInvalidInput, res.Error.Code)
	})
}

func TestExecuteRetrySucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	var calls atomic.Int32
	require.NoError(t, exec.Register(Definition{
		Name:    "pokemon_info",
		Version: "1.0.0",
		Retry:   &RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	}, HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("flaky upstream")
		}
		return "recovered", nil
	})))

	res := exec.Execute(context.Background(), "pokemon_info", nil)

	require.True(t, res.Success)
	assert.Equal(t, "recovered", res.Data)
	assert.Equal(t, 3, res.Meta.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecuteRetryExhausted(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	var calls atomic.Int32
	require.NoError(t, exec.Register(Definition{
		Name:    "pokemon_info",
		Version: "1.0.0",
		Retry:   &RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	}, HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) {
		calls.Add(1)
		return nil, errors.New("upstream down")
	})))

	res := exec.Execute(context.Background(), "pokemon_info", nil)

	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.CodeExecutionFailed, res.Error.Code)
	assert.Equal(t, 3, res.Meta.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecuteInvalidInputNotRetried(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	var calls atomic.Int32
	require.NoError(t, exec.Register(Definition{
		Name:    "pokemon_info",
		Version: "1.0.0",
		Retry:   &RetryPolicy{MaxAttempts: 3, Backoff: time.Hour},
	}, HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) {
		calls.Add(1)
		return nil, fault.New(fault.CodeInvalidInput, "unknown pokemon %q", "missingno")
	})))

	res := exec.Execute(context.Background(), "pokemon_info", nil)

	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.CodeInvalidInput, res.Error.Code)
	assert.Equal(t, 1, res.Meta.Attempts, "deterministic failures are not retried")
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteExponentialBackoffDelays(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	require.NoError(t, exec.Register(Definition{
		Name:    "pokemon_info",
		Version: "1.0.0",
		Retry:   &RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Millisecond, Exponential: true},
	}, HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) {
		return nil, errors.New("upstream down")
	})))

	started := time.Now()
	res := exec.Execute(context.Background(), "pokemon_info", nil)
	elapsed := time.Since(started)

	require.False(t, res.Success)
	// Two sleeps: 10ms after attempt 1, 20ms after attempt 2.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestExecuteTimeout(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	require.NoError(t, exec.Register(Definition{
		Name:    "slow_lookup",
		Version: "1.0.0",
		Timeout: 30 * time.Millisecond,
		Retry:   &RetryPolicy{MaxAttempts: 1},
	}, HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})))

	res := exec.Execute(context.Background(), "slow_lookup", nil)

	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, fault.CodeTimeout, res.Error.Code)
	assert.Equal(t, 1, res.Meta.Attempts)
}

func TestExecuteRateLimit(t *testing.T) {
	t.Parallel()

	exec := New(Config{EnableRateLimiting: true}, log.NewNop())
	require.NoError(t, exec.Register(Definition{
		Name:      "pokemon_info",
		Version:   "1.0.0",
		RateLimit: &RateLimit{MaxRequests: 2, Window: 80 * time.Millisecond},
	}, echoHandler(nil)))

	ctx := context.Background()
	require.True(t, exec.Execute(ctx, "pokemon_info", map[string]any{"i": 1}).Success)
	require.True(t, exec.Execute(ctx, "pokemon_info", map[string]any{"i": 2}).Success)

	rejected := exec.Execute(ctx, "pokemon_info", map[string]any{"i": 3})
	require.False(t, rejected.Success)
	require.NotNil(t, rejected.Error)
	assert.Equal(t, fault.CodeRateLimited, rejected.Error.Code)
	assert.Equal(t, 2, rejected.Error.Details["limit"])

	time.Sleep(100 * time.Millisecond)

	assert.True(t, exec.Execute(ctx, "pokemon_info", map[string]any{"i": 4}).Success,
		"new window accepts requests again")
}

func TestExecuteRateLimitDisabledByConfig(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	require.NoError(t, exec.Register(Definition{
		Name:      "pokemon_info",
		Version:   "1.0.0",
		RateLimit: &RateLimit{MaxRequests: 1, Window: time.Minute},
	}, echoHandler(nil)))

	ctx := context.Background()
	for i := range 5 {
		res := exec.Execute(ctx, "pokemon_info", map[string]any{"i": i})
		require.True(t, res.Success)
	}
}

func TestExecuteHooks(t *testing.T) {
	t.Parallel()

	def := Definition{
		Name:    "pokemon_info",
		Version: "1.0.0",
		Retry:   &RetryPolicy{MaxAttempts: 1},
	}

	t.Run("hooks wrap the handler in order", func(t *testing.T) {
		t.Parallel()
		exec := New(Config{}, log.NewNop())
		h := &hookedHandler{}
		require.NoError(t, exec.Register(def, h))

		res := exec.Execute(context.Background(), "pokemon_info", nil)
		require.True(t, res.Success)
		assert.Equal(t, []string{"before", "execute", "after"}, h.recorded())
	})

	t.Run("before-execute failure skips the handler", func(t *testing.T) {
		t.Parallel()
		exec := New(Config{}, log.NewNop())
		h := &hookedHandler{beforeErr: errors.New("not ready")}
		require.NoError(t, exec.Register(def, h))

		res := exec.Execute(context.Background(), "pokemon_info", nil)
		require.False(t, res.Success)
		assert.Equal(t, fault.CodeExecutionFailed, res.Error.Code)
		assert.Equal(t, []string{"before"}, h.recorded())
	})

	t.Run("after-execute failure fails the result", func(t *testing.T) {
		t.Parallel()
		exec := New(Config{}, log.NewNop())
		h := &hookedHandler{afterErr: errors.New("teardown failed")}
		require.NoError(t, exec.Register(def, h))

		res := exec.Execute(context.Background(), "pokemon_info", nil)
		require.False(t, res.Success)
		assert.Equal(t, fault.CodeExecutionFailed, res.Error.Code)
		assert.Equal(t, []string{"before", "execute", "after"}, h.recorded())
	})
}

func TestExecuteAbandonedOnCancel(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	require.NoError(t, exec.Register(Definition{
		Name:    "slow_lookup",
		Version: "1.0.0",
		Retry:   &RetryPolicy{MaxAttempts: 3, Backoff: time.Hour},
	}, HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(15*time.Millisecond, cancel)

	res := exec.Execute(ctx, "slow_lookup", nil)
	require.False(t, res.Success)

	m := exec.Metrics()
	assert.Equal(t, int64(1), m.TotalRequests)
	assert.Zero(t, m.TotalSuccesses, "abandoned calls never count as completed")
	assert.Equal(t, int64(1), m.ErrorCounts["slow_lookup"])
}

func TestMetricsAccumulation(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	require.NoError(t, exec.Register(
		Definition{Name: "pokemon_info", Version: "1.0.0"},
		HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) {
			time.Sleep(time.Millisecond)
			return "data", nil
		}),
	))
	require.NoError(t, exec.Register(
		Definition{Name: "broken", Version: "1.0.0", Retry: &RetryPolicy{MaxAttempts: 1}},
		HandlerFunc(func(ctx context.Context, ec ExecutionContext) (any, error) {
			return nil, errors.New("always fails")
		}),
	))

	ctx := context.Background()
	require.True(t, exec.Execute(ctx, "pokemon_info", map[string]any{"name": "pikachu"}).Success)
	require.True(t, exec.Execute(ctx, "pokemon_info", map[string]any{"name": "pikachu"}).Success)
	require.False(t, exec.Execute(ctx, "broken", nil).Success)
	require.False(t, exec.Execute(ctx, "ghost", nil).Success)

	m := exec.Metrics()
	assert.Equal(t, int64(4), m.TotalRequests)
	assert.Equal(t, int64(2), m.TotalSuccesses)
	assert.Equal(t, int64(2), m.RequestCounts["pokemon_info"])
	assert.Equal(t, int64(1), m.RequestCounts["broken"])
	assert.Equal(t, int64(1), m.RequestCounts["ghost"])
	assert.Equal(t, int64(1), m.ErrorCounts["broken"])
	assert.Equal(t, int64(1), m.ErrorCounts["ghost"])
	assert.Zero(t, m.ErrorCounts["pokemon_info"])
	assert.InDelta(t, 0.5, m.SuccessRate(), 1e-9)
	assert.Greater(t, m.TotalExecTime, time.Duration(0))
	assert.Equal(t, m.TotalExecTime/4, m.AvgExecTime())
}

func TestMetricsZeroTraffic(t *testing.T) {
	t.Parallel()

	m := New(Config{}, log.NewNop()).Metrics()
	assert.Zero(t, m.SuccessRate())
	assert.Zero(t, m.AvgExecTime())
}

func TestHealthThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		successes int
		failures  int
		want      string
	}{
		{name: "no traffic", successes: 0, failures: 0, want: HealthHealthy},
		{name: "all succeeding", successes: 20, failures: 0, want: HealthHealthy},
		{name: "rate exactly 0.95 is degraded", successes: 19, failures: 1, want: HealthDegraded},
		{name: "rate 0.90 is degraded", successes: 9, failures: 1, want: HealthDegraded},
		{name: "rate exactly 0.80 is unhealthy", successes: 16, failures: 4, want: HealthUnhealthy},
		{name: "rate 0.40 is unhealthy", successes: 4, failures: 6, want: HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			exec := New(Config{}, log.NewNop())
			require.NoError(t, exec.Register(
				Definition{Name: "pokemon_info", Version: "1.0.0"},
				echoHandler(nil),
			))

			ctx := context.Background()
			for i := range tt.successes {
				require.True(t, exec.Execute(ctx, "pokemon_info", map[string]any{"i": i}).Success)
			}
			for range tt.failures {
				require.False(t, exec.Execute(ctx, "ghost", nil).Success)
			}

			h := exec.Health()
			assert.Equal(t, tt.want, h.Status)
			assert.Equal(t, 1, h.Details.ToolCount)
		})
	}
}

func TestHealthDetails(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	require.NoError(t, exec.Register(
		Definition{Name: "pokemon_info", Version: "1.0.0"},
		echoHandler(nil),
	))

	ctx := context.Background()
	input := map[string]any{"name": "pikachu"}
	require.True(t, exec.Execute(ctx, "pokemon_info", input).Success)
	require.True(t, exec.Execute(ctx, "pokemon_info", input).Success)

	h := exec.Health()
	assert.Equal(t, HealthHealthy, h.Status)
	assert.InDelta(t, 1.0, h.Details.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, h.Details.CacheHitRate, 1e-9, "one miss then one hit")
	assert.GreaterOrEqual(t, h.Details.AvgExecTime, time.Duration(0))
}

func TestStartCleanupSweepsExpiredEntries(t *testing.T) {
	t.Parallel()

	exec := New(Config{
		CacheTTL:        5 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
	}, log.NewNop())
	require.NoError(t, exec.Register(
		Definition{Name: "pokemon_info", Version: "1.0.0"},
		echoHandler(nil),
	))

	require.True(t, exec.Execute(context.Background(), "pokemon_info", map[string]any{"name": "pikachu"}).Success)
	require.Equal(t, 1, exec.store.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec.StartCleanup(ctx)

	require.Eventually(t, func() bool {
		return exec.store.Len() == 0
	}, time.Second, 5*time.Millisecond, "cleanup should sweep the expired entry")
}

func TestExecuteConcurrent(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, log.NewNop())
	require.NoError(t, exec.Register(
		Definition{Name: "pokemon_info", Version: "1.0.0"},
		echoHandler(nil),
	))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				res := exec.Execute(context.Background(), "pokemon_info", map[string]any{"i": i % 5})
				assert.True(t, res.Success)
			}
		}()
	}
	wg.Wait()

	m := exec.Metrics()
	assert.Equal(t, int64(200), m.TotalRequests)
	assert.Equal(t, int64(200), m.TotalSuccesses)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultTimeout, cfg.DefaultTimeout)
	assert.Equal(t, DefaultMaxAttempts, cfg.DefaultMaxAttempts)
	assert.Equal(t, DefaultBackoff, cfg.DefaultBackoff)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultReferenceTTL, cfg.ReferenceTTL)
	assert.Equal(t, DefaultTeamTTL, cfg.TeamTTL)
	assert.Equal(t, DefaultCleanupInterval, cfg.CleanupInterval)
	assert.False(t, cfg.EnableRateLimiting)
}
