package tools

import "context"

// Handler executes one tool invocation. Implementations receive the
// per-invocation ExecutionContext and return their output as plain data;
// the Executor wraps it into a Result.
//
// Handlers run under a deadline-carrying context. A handler that outlives
// its deadline keeps running in the background while the Executor reports a
// timeout, so side effects must be idempotent or safely ignorable.
type Handler interface {
	Execute(ctx context.Context, ec ExecutionContext) (any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, ec ExecutionContext) (any, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, ec ExecutionContext) (any, error) {
	return f(ctx, ec)
}

// Validator is an optional upgrade interface for handlers that validate
// input beyond the declared schema (value ranges, formats). The Executor
// type-asserts for it after schema validation passes; a returned error
// short-circuits execution as an invalid-input failure.
//
// This follows the optional-interface pattern of http.Flusher: consumers
// probe for the capability instead of every handler carrying stub methods.
type Validator interface {
	ValidateInput(input map[string]any) error
}

// Hooks is an optional upgrade interface for handlers that need setup or
// teardown immediately around each execution attempt. Hook errors propagate
// as execution failures and are subject to the same retry policy as the
// handler itself.
type Hooks interface {
	BeforeExecute(ctx context.Context, ec ExecutionContext) error
	AfterExecute(ctx context.Context, ec ExecutionContext, output any) error
}
