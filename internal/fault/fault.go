// Package fault defines the error taxonomy shared across component boundaries.
//
// Every failure that crosses the orchestrator boundary is represented as an
// *Error carrying a machine-readable Code, a human message, and optional
// structured details. Failures stay ordinary data: the executor returns them
// inside tool results, the API layer maps them to response payloads, and the
// MCP layer folds them into error results. Raw errors from handlers or
// external collaborators are normalized with Coerce before they escape.
//
// Error Handling:
//   - Check categories with fault.IsCode(err, fault.CodeTimeout) or errors.As
//   - Wrap causes via the Err field; Unwrap() keeps errors.Is chains intact
package fault

import (
	"context"
	"errors"
	"fmt"
)

// Code identifies a failure category. Codes are part of the wire contract:
// they appear in tool results, API error payloads, and MCP error text.
type Code string

const (
	// CodeInvalidInput indicates the input failed schema or custom validation.
	CodeInvalidInput Code = "invalid_input"

	// CodeToolNotFound indicates no tool is registered under the requested name.
	CodeToolNotFound Code = "tool_not_found"

	// CodeExecutionFailed indicates the tool handler returned an error.
	CodeExecutionFailed Code = "tool_execution_failed"

	// CodeTimeout indicates the tool handler exceeded its time budget.
	CodeTimeout Code = "tool_timeout"

	// CodeRateLimited indicates the tool's request window is exhausted.
	CodeRateLimited Code = "rate_limit_exceeded"

	// CodeExternalAPI indicates an upstream service failed; Details carry
	// "status" and "body" when available.
	CodeExternalAPI Code = "external_api_error"

	// CodeInternal is the fallback for unclassified failures.
	CodeInternal Code = "internal_error"
)

// Error is the taxonomy's error value.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// Err is the wrapped cause, if any. Excluded from serialization so
	// internal error chains never leak onto the wire.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil fault>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithDetail returns e with the given detail attached. The receiver is
// mutated and returned for chaining during construction; Errors must not be
// modified after they escape the constructing function.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the given code and message, retaining err as
// the unwrappable cause.
func Wrap(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// InvalidInput reports a validation failure. Fields lists the offending
// input fields and ends up in Details under "fields".
func InvalidInput(message string, fields []string) *Error {
	e := New(CodeInvalidInput, "%s", message)
	if len(fields) > 0 {
		e.WithDetail("fields", fields)
	}
	return e
}

// ToolNotFound reports a lookup miss for the given tool name.
func ToolNotFound(tool string) *Error {
	return New(CodeToolNotFound, "tool %q is not registered", tool).
		WithDetail("tool", tool)
}

// RateLimited reports an exhausted request window for the given tool.
func RateLimited(tool string, limit int) *Error {
	return New(CodeRateLimited, "rate limit exceeded for tool %q", tool).
		WithDetail("tool", tool).
		WithDetail("limit", limit)
}

// Timeout reports that a tool handler exceeded its time budget.
func Timeout(tool string, budget string) *Error {
	return New(CodeTimeout, "tool %q timed out after %s", tool, budget).
		WithDetail("tool", tool).
		WithDetail("timeout", budget)
}

// ExternalAPI reports an upstream service failure with its status and a
// bounded slice of the response body.
func ExternalAPI(service string, status int, body string) *Error {
	return New(CodeExternalAPI, "%s returned status %d", service, status).
		WithDetail("service", service).
		WithDetail("status", status).
		WithDetail("body", body)
}

// Coerce normalizes an arbitrary error into the taxonomy. An *Error passes
// through unchanged; context deadline errors become CodeTimeout; everything
// else becomes CodeExecutionFailed with the original error as cause. Coerce
// of nil returns nil.
func Coerce(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeTimeout, "execution deadline exceeded")
	}
	return Wrap(err, CodeExecutionFailed, "tool execution failed")
}

// CodeOf extracts the taxonomy code from err, or CodeInternal when err is
// not part of the taxonomy. CodeOf(nil) returns the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// IsCode reports whether err belongs to the taxonomy and carries code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
