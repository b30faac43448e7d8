package tools

import (
	"sort"
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
)

// Field types understood by the schema validator. A Field may declare any
// other type string; unknown types are treated as always valid so older
// deployments accept schemas written for newer validators.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Tool categories with dedicated cache TTL tiers. Tools in CategoryReference
// serve near-static upstream data and cache for hours; CategoryTeam output
// depends on ensemble state and caches for minutes; everything else uses the
// configured default TTL.
const (
	CategoryReference = "reference"
	CategoryTeam      = "team"
)

// Field describes one input (or output) field of a tool schema.
type Field struct {
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// RateLimit caps how many requests a tool accepts per fixed window.
type RateLimit struct {
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
}

// RetryPolicy controls re-execution after handler failures.
// Backoff is the base delay; with Exponential set, attempt n sleeps
// Backoff * 2^(n-1) before the next try.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	Backoff     time.Duration `json:"backoff"`
	Exponential bool          `json:"exponential"`
}

// Definition declares a tool. Definitions are created during registration at
// process start and never mutated afterwards; the Executor looks them up by
// Name.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Category    string `json:"category,omitempty"`

	// InputSchema maps field names to their declarations. Validation
	// checks required presence and declared-type conformance.
	InputSchema map[string]Field `json:"input_schema,omitempty"`

	// OutputSchema is advisory; the Executor does not validate outputs.
	OutputSchema map[string]Field `json:"output_schema,omitempty"`

	// RateLimit, Timeout, and Retry override the Executor defaults when
	// set. A nil RateLimit means the tool is unlimited.
	RateLimit *RateLimit    `json:"rate_limit,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Retry     *RetryPolicy  `json:"retry,omitempty"`
}

// validate checks that a definition is registrable.
func (d Definition) validate() error {
	var fields []string
	if d.Name == "" {
		fields = append(fields, "name")
	}
	if d.Version == "" {
		fields = append(fields, "version")
	}
	var missingTypes []string
	for name, field := range d.InputSchema {
		if field.Type == "" {
			missingTypes = append(missingTypes, "input_schema."+name+".type")
		}
	}
	sort.Strings(missingTypes)
	fields = append(fields, missingTypes...)
	if d.RateLimit != nil && (d.RateLimit.MaxRequests <= 0 || d.RateLimit.Window <= 0) {
		fields = append(fields, "rate_limit")
	}
	if d.Retry != nil && d.Retry.MaxAttempts <= 0 {
		fields = append(fields, "retry.max_attempts")
	}
	if len(fields) > 0 {
		return fault.InvalidInput("invalid tool definition", fields)
	}
	return nil
}
