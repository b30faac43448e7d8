package tools

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in the tools
// package. Timed-out handler goroutines must exit once their execution
// context is cancelled.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
