// Package stats holds the durable usage state: named counters, the hourly
// activity log and the analytics facets. Each state type carries pure
// mutation methods; the stores around them load once at startup and rewrite
// the whole record after every mutation.
package stats

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/developingchet/naas/internal/metrics"
	"github.com/developingchet/naas/internal/storage"
)

// Record names under which each store persists its snapshot.
const (
	RecordStats     = "stats"
	RecordActivity  = "activity"
	RecordAnalytics = "analytics"
)

// load decodes the named record into a fresh T. Absent or unreadable records
// are not fatal: the caller gets ok=false and starts from its default.
func load[T any](b storage.Backend, name string) (T, bool) {
	var v T
	err := b.Load(name, &v)
	switch {
	case err == nil:
		return v, true
	case errors.Is(err, storage.ErrNotFound):
		log.Debug().Str("record", name).Msg("no persisted state, starting from defaults")
	default:
		log.Warn().Err(err).Str("record", name).Msg("persisted state unreadable, starting from defaults")
	}
	var zero T
	return zero, false
}

// persist writes a snapshot. Failures are logged and counted, never returned:
// the request that caused the mutation is still answered.
func persist(b storage.Backend, name string, v any) {
	if err := b.Save(name, v); err != nil {
		metrics.PersistErrors.WithLabelValues(name).Inc()
		log.Error().Err(err).Str("record", name).Msg("state write failed")
	}
}

func cloneCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
