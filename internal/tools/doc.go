// Package tools implements the tool registry and execution orchestrator.
//
// A tool is registered as a Definition (name, version, category, input
// schema, optional rate limit / timeout / retry policy) paired with a
// Handler. The Executor wraps every invocation in a fixed pipeline:
//
//	request metrics -> lookup -> rate limit -> input validation ->
//	cache lookup -> timeout+retry execution -> cache store -> result metrics
//
// Outcomes are always returned as a Result value; failures are data carrying
// a fault.Error, never panics or raw error returns, so callers (the
// conversation driver, the HTTP API, the MCP server) treat success and
// failure uniformly.
//
// The Executor exclusively owns the result cache, the per-tool rate-limit
// windows, and the metrics counters. All three are safe under concurrent
// Execute calls; no other component mutates them.
package tools
