package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "nil receiver",
			err:  nil,
			want: "<nil fault>",
		},
		{
			name: "code and message",
			err:  New(CodeToolNotFound, "tool %q is not registered", "pokemon_info"),
			want: `tool_not_found: tool "pokemon_info" is not registered`,
		},
		{
			name: "wrapped cause included",
			err:  Wrap(errors.New("boom"), CodeExecutionFailed, "handler failed"),
			want: "tool_execution_failed: handler failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap_PreservesChain(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Wrap(cause, CodeExternalAPI, "pokeapi unreachable")

	assert.True(t, errors.Is(err, cause))

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, CodeExternalAPI, fe.Code)
}

func TestWrap_ThroughFmtErrorf(t *testing.T) {
	t.Parallel()

	// Taxonomy errors must survive another layer of fmt.Errorf wrapping.
	inner := ToolNotFound("ditto_scanner")
	outer := fmt.Errorf("execute: %w", inner)

	assert.Equal(t, CodeToolNotFound, CodeOf(outer))
	assert.True(t, IsCode(outer, CodeToolNotFound))
}

func TestInvalidInput_Fields(t *testing.T) {
	t.Parallel()

	err := InvalidInput("input validation failed", []string{"name", "limit"})

	assert.Equal(t, CodeInvalidInput, err.Code)
	assert.Equal(t, []string{"name", "limit"}, err.Details["fields"])
}

func TestInvalidInput_NoFields(t *testing.T) {
	t.Parallel()

	err := InvalidInput("bad input", nil)
	assert.NotContains(t, err.Details, "fields")
}

func TestExternalAPI_Details(t *testing.T) {
	t.Parallel()

	err := ExternalAPI("pokeapi", 503, "upstream unavailable")

	assert.Equal(t, CodeExternalAPI, err.Code)
	assert.Equal(t, "pokeapi", err.Details["service"])
	assert.Equal(t, 503, err.Details["status"])
	assert.Equal(t, "upstream unavailable", err.Details["body"])
}

func TestRateLimited(t *testing.T) {
	t.Parallel()

	err := RateLimited("team_analysis", 5)

	assert.Equal(t, CodeRateLimited, err.Code)
	assert.Equal(t, "team_analysis", err.Details["tool"])
	assert.Equal(t, 5, err.Details["limit"])
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       error
		wantCode Code
	}{
		{
			name:     "taxonomy error passes through",
			in:       Timeout("pokemon_info", "5s"),
			wantCode: CodeTimeout,
		},
		{
			name:     "wrapped taxonomy error passes through",
			in:       fmt.Errorf("attempt 3: %w", ToolNotFound("x")),
			wantCode: CodeToolNotFound,
		},
		{
			name:     "deadline exceeded becomes timeout",
			in:       context.DeadlineExceeded,
			wantCode: CodeTimeout,
		},
		{
			name:     "plain error becomes execution failure",
			in:       errors.New("nil pointer somewhere"),
			wantCode: CodeExecutionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Coerce(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestCoerce_Nil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Coerce(nil))
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("anonymous")))
	assert.Equal(t, CodeTimeout, CodeOf(Timeout("t", "1s")))
}

func TestWithDetail_InitializesMap(t *testing.T) {
	t.Parallel()

	err := New(CodeInternal, "oops")
	err.WithDetail("request_id", "r-1")

	assert.Equal(t, "r-1", err.Details["request_id"])
}
