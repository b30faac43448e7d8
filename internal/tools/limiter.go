package tools

import (
	"sync"
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/fault"
)

// windowLimiter counts requests per tool in fixed windows. When the elapsed
// time since a window started reaches the window size, the next request
// begins a new window with its counter reset to 1; within a window, requests
// are rejected once the counter has reached the limit.
//
// Fixed windows admit bursts of up to 2x the limit across a window boundary.
// That is a documented characteristic of this limiter, traded for a single
// counter and timestamp per tool.
type windowLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowEntry
}

type windowEntry struct {
	count       int
	windowStart time.Time
}

func newWindowLimiter() *windowLimiter {
	return &windowLimiter{windows: make(map[string]*windowEntry)}
}

// allow records one request for tool and returns a rate-limit fault when the
// current window is exhausted.
func (l *windowLimiter) allow(tool string, limit int, window time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.windows[tool]
	if !ok || now.Sub(e.windowStart) >= window {
		l.windows[tool] = &windowEntry{count: 1, windowStart: now}
		return nil
	}
	if e.count >= limit {
		return fault.RateLimited(tool, limit)
	}
	e.count++
	return nil
}
