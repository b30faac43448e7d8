// Package testutil provides deterministic test doubles and stream parsing
// helpers shared by the chat, api, and cmd tests.
package testutil

import (
	"context"
	"iter"
	"sync"

	"github.com/lucasdpassos/pokedex-assistant/internal/model"
)

// ScriptedTurn is one pre-recorded model response: an event sequence plus an
// optional terminal error yielded after the events.
type ScriptedTurn struct {
	Events []model.Event
	Err    error
}

// ScriptedModel is a model.Client that replays pre-recorded turns: the n-th
// Stream call replays the n-th turn. Calls beyond the script replay an empty
// turn that ends immediately.
//
// Thread-safe for concurrent use. Every request is recorded for assertions.
type ScriptedModel struct {
	mu       sync.Mutex
	turns    []ScriptedTurn
	requests []model.Request
}

// NewScriptedModel creates a model that replays the given turns in order.
func NewScriptedModel(turns ...ScriptedTurn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

// Stream implements model.Client.
func (m *ScriptedModel) Stream(ctx context.Context, req model.Request) iter.Seq2[model.Event, error] {
	m.mu.Lock()
	call := len(m.requests)
	m.requests = append(m.requests, req)
	var turn ScriptedTurn
	if call < len(m.turns) {
		turn = m.turns[call]
	}
	m.mu.Unlock()

	return func(yield func(model.Event, error) bool) {
		for _, ev := range turn.Events {
			if ctx.Err() != nil {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
		if turn.Err != nil {
			yield(model.Event{}, turn.Err)
		}
	}
}

// Calls returns how many times Stream was invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of all recorded requests in call order.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]model.Request, len(m.requests))
	copy(cp, m.requests)
	return cp
}

// Turn concatenates block event sequences and terminates them with a
// message_stop event.
func Turn(blocks ...[]model.Event) []model.Event {
	var events []model.Event
	for _, b := range blocks {
		events = append(events, b...)
	}
	return append(events, model.Event{Type: model.EventMessageStop})
}

// TextBlock returns the event sequence of one text block delivered in the
// given deltas.
func TextBlock(deltas ...string) []model.Event {
	events := []model.Event{{Type: model.EventBlockStart, Kind: model.BlockText}}
	for _, d := range deltas {
		events = append(events, model.Event{Type: model.EventTextDelta, Text: d})
	}
	return append(events, model.Event{Type: model.EventBlockStop})
}

// ToolUse returns the event sequence of one tool_use block whose input JSON
// arrives in the given verbatim fragments.
func ToolUse(id, name string, fragments ...string) []model.Event {
	events := []model.Event{{Type: model.EventBlockStart, Kind: model.BlockToolUse, ID: id, Name: name}}
	for _, f := range fragments {
		events = append(events, model.Event{Type: model.EventInputDelta, Partial: f})
	}
	return append(events, model.Event{Type: model.EventBlockStop})
}

// TextTurn is shorthand for Turn(TextBlock(deltas...)).
func TextTurn(deltas ...string) []model.Event {
	return Turn(TextBlock(deltas...))
}
