package stats

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/developingchet/naas/internal/metrics"
	"github.com/developingchet/naas/internal/storage"
)

// BucketLayout formats the hour an activity bucket covers: YYYY-MM-DD-HH.
const BucketLayout = "2006-01-02-15"

// BucketKey returns the key of the hour containing t, in loc.
func BucketKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(BucketLayout)
}

// ParseBucketKey returns the start of the hour named by key. Keys that do not
// name a real calendar hour, or are not in canonical zero-padded form, fail.
func ParseBucketKey(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(BucketLayout, key, loc)
	if err != nil {
		return time.Time{}, err
	}
	if t.Format(BucketLayout) != key {
		return time.Time{}, &time.ParseError{Layout: BucketLayout, Value: key, Message: ": not in canonical form"}
	}
	return t, nil
}

// Activity maps bucket keys to event counts.
type Activity map[string]int64

// Add counts one event in the bucket for now and returns its key.
func (a Activity) Add(now time.Time, loc *time.Location) string {
	key := BucketKey(now, loc)
	a[key]++
	return key
}

// PruneOlderThan drops every bucket whose hour starts strictly before cutoff.
// Keys that fail to parse are left in place and returned, sorted.
func (a Activity) PruneOlderThan(cutoff time.Time, loc *time.Location) (removed int, malformed []string) {
	for key := range a {
		t, err := ParseBucketKey(key, loc)
		if err != nil {
			malformed = append(malformed, key)
			continue
		}
		if t.Before(cutoff) {
			delete(a, key)
			removed++
		}
	}
	sort.Strings(malformed)
	return removed, malformed
}

// PrunePolicy controls retention of activity buckets. Each recorded event
// triggers a prune pass with the given probability.
type PrunePolicy struct {
	Retention   time.Duration
	Probability float64
}

// DefaultPrunePolicy keeps 14 days and sweeps on roughly 1 in 100 events.
func DefaultPrunePolicy() PrunePolicy {
	return PrunePolicy{Retention: 14 * 24 * time.Hour, Probability: 0.01}
}

// ActivityLog is the write-through store for Activity.
type ActivityLog struct {
	mu      sync.Mutex
	backend storage.Backend
	state   Activity
	policy  PrunePolicy
	loc     *time.Location
	random  func() float64
}

// ActivityOption customises an ActivityLog.
type ActivityOption func(*ActivityLog)

// WithLocation sets the zone bucket keys are computed in (default time.Local).
func WithLocation(loc *time.Location) ActivityOption {
	return func(l *ActivityLog) { l.loc = loc }
}

// WithRandom replaces the source deciding whether a prune pass runs. It must
// return values in [0, 1).
func WithRandom(f func() float64) ActivityOption {
	return func(l *ActivityLog) { l.random = f }
}

// NewActivityLog loads persisted buckets and reports any malformed keys.
func NewActivityLog(b storage.Backend, policy PrunePolicy, opts ...ActivityOption) *ActivityLog {
	l := &ActivityLog{
		backend: b,
		state:   Activity{},
		policy:  policy,
		loc:     time.Local,
		random:  rand.Float64,
	}
	for _, o := range opts {
		o(l)
	}

	if loaded, ok := load[Activity](b, RecordActivity); ok && loaded != nil {
		l.state = loaded
	}
	for key := range l.state {
		if _, err := ParseBucketKey(key, l.loc); err != nil {
			log.Warn().Str("bucket", key).Msg("persisted activity bucket has a malformed key")
		}
	}
	return l
}

// Record counts one event at now, occasionally prunes expired buckets, and
// flushes once.
func (l *ActivityLog) Record(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Add(now, l.loc)
	if l.random() < l.policy.Probability {
		l.pruneLocked(now)
	}
	persist(l.backend, RecordActivity, l.state)
}

// Prune runs a retention pass immediately and persists only when something
// was dropped. It returns the number of buckets removed.
func (l *ActivityLog) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := l.pruneLocked(now)
	if removed > 0 {
		persist(l.backend, RecordActivity, l.state)
	}
	return removed
}

func (l *ActivityLog) pruneLocked(now time.Time) int {
	cutoff := now.Add(-l.policy.Retention)
	removed, malformed := l.state.PruneOlderThan(cutoff, l.loc)
	if len(malformed) > 0 {
		metrics.MalformedBuckets.Add(float64(len(malformed)))
		log.Warn().Strs("buckets", malformed).Msg("skipping malformed activity buckets during prune")
	}
	if removed > 0 {
		metrics.ActivityPruned.Add(float64(removed))
		log.Debug().Int("removed", removed).Time("cutoff", cutoff).Msg("activity pruned")
	}
	return removed
}

// Snapshot returns a copy safe to encode without holding the lock.
func (l *ActivityLog) Snapshot() Activity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Activity(cloneCounts(l.state))
}
