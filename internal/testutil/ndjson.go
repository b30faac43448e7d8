package testutil

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lucasdpassos/pokedex-assistant/internal/chat"
)

// ParseNDJSON parses a newline-delimited JSON stream of chat events, one
// event per line. Blank lines are tolerated; any other unparseable line
// fails the test.
//
// Example:
//
//	events := testutil.ParseNDJSON(t, rec.Body.String())
//	require.Equal(t, chat.EventDone, events[len(events)-1].Type)
func ParseNDJSON(t *testing.T, body string) []chat.Event {
	t.Helper()

	var events []chat.Event
	scanner := bufio.NewScanner(strings.NewReader(body))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev chat.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("NDJSON parse error at line %d: %v (line: %q)", lineNum, err, line)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("NDJSON scan error: %v", err)
	}
	return events
}

// EventTypes extracts the type of each event, preserving order.
func EventTypes(events []chat.Event) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}
