package chat

import "context"

// Client-visible stream event types. Every conversation turn produces an
// ordered sequence of these, ending with exactly one done event unless the
// caller cancels first.
const (
	// EventText carries one text delta in Content, forwarded in arrival
	// order.
	EventText = "text"

	// EventToolResult reports one completed tool call: ToolName plus the
	// full execution Result in Result. Failures are folded into the
	// Result payload, never raised.
	EventToolResult = "tool_result"

	// EventError reports a fatal turn failure in Content. Followed by a
	// done event.
	EventError = "error"

	// EventDone terminates the stream. Always last, sent at most once.
	EventDone = "done"
)

// Event is one record of the client-visible conversation stream. It
// serializes to one NDJSON line on the HTTP API.
type Event struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	ToolName string `json:"tool_name,omitempty"`
	Result   any    `json:"result,omitempty"`
}

// emitter guards the output stream invariants: nothing is written after the
// consumer breaks, after cancellation, or after the done event. Writes in
// those states are silent no-ops.
type emitter struct {
	ctx     context.Context
	yield   func(Event, error) bool
	stopped bool
	done    bool
}

func (e *emitter) send(ev Event, err error) bool {
	if e.stopped || e.done {
		return false
	}
	if e.ctx.Err() != nil {
		e.stopped = true
		return false
	}
	if !e.yield(ev, err) {
		e.stopped = true
		return false
	}
	return true
}

func (e *emitter) text(delta string) bool {
	return e.send(Event{Type: EventText, Content: delta}, nil)
}

func (e *emitter) toolResult(name string, result any) bool {
	return e.send(Event{Type: EventToolResult, ToolName: name, Result: result}, nil)
}

// fail emits a generic error event; cause travels in the error slot for the
// consumer's logs and never reaches the wire payload.
func (e *emitter) fail(message string, cause error) bool {
	return e.send(Event{Type: EventError, Content: message}, cause)
}

func (e *emitter) finish() {
	if e.send(Event{Type: EventDone}, nil) {
		e.done = true
	}
}
