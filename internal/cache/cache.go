// Package cache provides the in-process result cache for tool executions.
//
// The store combines TTL expiry with LRU eviction. Keys are deterministic
// fingerprints of (tool name, input): the input mapping is serialized with
// lexicographically sorted keys at every nesting level before hashing, so
// semantically identical inputs always collide to the same key regardless of
// construction order.
//
// Recency for LRU is tracked with a monotonically increasing access counter
// assigned on every read and write, not wall-clock time, so two accesses in
// the same clock tick still have a total order.
//
// The store is safe for concurrent use. It never evicts on a timer by
// itself; the owner is expected to call Cleanup periodically to sweep
// expired entries that are no longer being read.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/log"
)

// DefaultCapacity is used when NewStore receives a non-positive capacity.
const DefaultCapacity = 1000

// entry is one cached value with its bookkeeping.
// An entry is logically absent once now - insertedAt > ttl, even while it
// still occupies memory until a Get or Cleanup removes it.
type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
	hits       uint64
	access     uint64 // recency stamp from Store.access
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Store is a TTL+LRU key/value store.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int
	access   uint64 // monotonic access counter, incremented on read and write

	// lookup stats for the health surface
	hits   uint64
	misses uint64

	logger log.Logger
}

// NewStore creates a Store holding at most capacity entries.
func NewStore(capacity int, logger log.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		entries:  make(map[string]*entry),
		capacity: capacity,
		logger:   logger.With("component", "cache"),
	}
}

// Key returns the deterministic fingerprint for a tool invocation:
// tool + ":" + hex(sha256(canonical serialization of input)).
func Key(tool string, input map[string]any) string {
	var b strings.Builder
	canonicalize(&b, input)
	sum := sha256.Sum256([]byte(b.String()))
	return tool + ":" + hex.EncodeToString(sum[:])
}

// canonicalize writes a JSON-shaped serialization of v with map keys sorted
// lexicographically at every level. Slices keep their order. Values that do
// not marshal fall back to their fmt representation so key generation never
// fails; such values simply fingerprint by their string form.
func canonicalize(b *strings.Builder, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			canonicalize(b, t[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			canonicalize(b, el)
		}
		b.WriteByte(']')
	default:
		eb, err := json.Marshal(t)
		if err != nil {
			fmt.Fprintf(b, "%q", fmt.Sprint(t))
			return
		}
		b.Write(eb)
	}
}

// Get returns the value stored under key. An entry whose age exceeds its TTL
// is removed and reported as a miss. A hit increments the entry's hit counter
// and refreshes its LRU recency.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		s.misses++
		s.logger.Debug("expired entry removed on read", "key", key)
		return nil, false
	}

	e.hits++
	s.access++
	e.access = s.access
	s.hits++
	return e.value, true
}

// Set stores value under key with the given TTL. Setting an existing key
// replaces its value and restarts its TTL. When the store is at capacity and
// the key is new, the least-recently-used entry is evicted first.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access++
	if e, ok := s.entries[key]; ok {
		e.value = value
		e.insertedAt = time.Now()
		e.ttl = ttl
		e.access = s.access
		return
	}

	if len(s.entries) >= s.capacity {
		s.evictOldest()
	}
	s.entries[key] = &entry{
		value:      value,
		insertedAt: time.Now(),
		ttl:        ttl,
		access:     s.access,
	}
}

// evictOldest removes the entry with the smallest access counter.
// Caller must hold s.mu.
func (s *Store) evictOldest() {
	var (
		oldestKey string
		oldest    uint64
		found     bool
	)
	for k, e := range s.entries {
		if !found || e.access < oldest {
			oldestKey = k
			oldest = e.access
			found = true
		}
	}
	if found {
		delete(s.entries, oldestKey)
		s.logger.Debug("evicted least recently used entry", "key", oldestKey)
	}
}

// Delete removes key and reports whether an entry was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return ok
}

// Clear removes all entries. Lookup statistics are preserved.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// Cleanup removes every expired entry regardless of access patterns and
// returns the number removed. Intended to be called periodically by the
// owner so cold expired keys do not accumulate.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("cleanup sweep removed expired entries", "removed", removed)
	}
	return removed
}

// Len returns the number of physically present entries, including entries
// that are expired but not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// HitRate returns hits / (hits + misses) across the store's lifetime,
// or 0 before any lookup.
func (s *Store) HitRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.hits + s.misses
	if total == 0 {
		return 0
	}
	return float64(s.hits) / float64(total)
}
