package stats

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/developingchet/naas/internal/storage"
)

// TotalFetches counts /reason requests served to non-bot clients.
const TotalFetches = "totalFetches"

// Counters maps counter names to non-negative values.
type Counters map[string]int64

// DefaultCounters is the state used when nothing valid is persisted.
func DefaultCounters() Counters {
	return Counters{TotalFetches: 0}
}

// Increment adds one to key, creating it at zero, and returns the new value.
func (c Counters) Increment(key string) int64 {
	c[key]++
	return c[key]
}

// CounterStore is the write-through store for Counters.
type CounterStore struct {
	mu      sync.Mutex
	backend storage.Backend
	state   Counters
}

// NewCounterStore loads the persisted counters, falling back to
// DefaultCounters when the record is missing or does not decode.
func NewCounterStore(b storage.Backend) *CounterStore {
	state := DefaultCounters()
	if loaded, ok := load[Counters](b, RecordStats); ok {
		for k, v := range loaded {
			if v < 0 {
				log.Warn().Str("counter", k).Int64("value", v).Msg("ignoring negative persisted counter")
				continue
			}
			state[k] = v
		}
	}
	return &CounterStore{backend: b, state: state}
}

// Increment bumps key and flushes the full snapshot before returning.
func (s *CounterStore) Increment(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.state.Increment(key)
	persist(s.backend, RecordStats, s.state)
	return n
}

// Get returns the current value of key.
func (s *CounterStore) Get(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[key]
}

// Snapshot returns a copy safe to encode without holding the lock.
func (s *CounterStore) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counters(cloneCounts(s.state))
}
