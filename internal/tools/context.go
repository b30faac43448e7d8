package tools

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionContext carries the per-invocation facts handed to a Handler.
// It is created fresh for every Execute call, never mutated afterwards, and
// discarded when the call completes.
type ExecutionContext struct {
	Tool      string
	Input     map[string]any
	RequestID string
	UserID    string
	CreatedAt time.Time
	Metadata  map[string]any
}

// ExecOption customizes the ExecutionContext of a single Execute call.
type ExecOption func(*ExecutionContext)

// WithRequestID correlates the execution with an existing request. Without
// it the Executor assigns a fresh UUID.
func WithRequestID(id string) ExecOption {
	return func(ec *ExecutionContext) {
		ec.RequestID = id
	}
}

// WithUserID attributes the execution to a user.
func WithUserID(id string) ExecOption {
	return func(ec *ExecutionContext) {
		ec.UserID = id
	}
}

// WithMetadata attaches one metadata entry to the execution.
func WithMetadata(key string, value any) ExecOption {
	return func(ec *ExecutionContext) {
		if ec.Metadata == nil {
			ec.Metadata = make(map[string]any, 1)
		}
		ec.Metadata[key] = value
	}
}

func newExecutionContext(tool string, input map[string]any, opts ...ExecOption) ExecutionContext {
	ec := ExecutionContext{
		Tool:      tool,
		Input:     input,
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&ec)
	}
	if ec.RequestID == "" {
		ec.RequestID = uuid.NewString()
	}
	return ec
}
