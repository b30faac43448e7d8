package tools

import (
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
)

// Result is the outcome of one Execute call. Exactly one Result is produced
// per call, including failed and cache-served ones, and it is never mutated
// after creation.
type Result struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *fault.Error `json:"error,omitempty"`
	Meta    ResultMeta   `json:"meta"`
}

// ResultMeta records how the outcome was produced.
type ResultMeta struct {
	// Elapsed is the wall time of the whole Execute call.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Attempts is the number of handler attempts made. Cache hits and
	// failures before execution (lookup, rate limit, validation) report 0.
	Attempts int `json:"attempts"`

	// ToolVersion echoes the definition's version when the tool was found.
	ToolVersion string `json:"tool_version,omitempty"`

	// Cached is true when the result was served from the cache.
	Cached bool `json:"cached,omitempty"`

	CompletedAt time.Time `json:"completed_at"`
}

func successResult(data any, started time.Time, attempts int, version string, cached bool) Result {
	return Result{
		Success: true,
		Data:    data,
		Meta: ResultMeta{
			Elapsed:     time.Since(started),
			Attempts:    attempts,
			ToolVersion: version,
			Cached:      cached,
			CompletedAt: time.Now(),
		},
	}
}

func failureResult(ferr *fault.Error, started time.Time, attempts int, version string) Result {
	return Result{
		Success: false,
		Error:   ferr,
		Meta: ResultMeta{
			Elapsed:     time.Since(started),
			Attempts:    attempts,
			ToolVersion: version,
			CompletedAt: time.Now(),
		},
	}
}
