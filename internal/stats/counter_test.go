package stats

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developingchet/naas/internal/metrics"
	"github.com/developingchet/naas/internal/storage"
)

func TestCounterStore_FreshStart(t *testing.T) {
	s := NewCounterStore(storage.NewMemBackend())
	assert.Equal(t, Counters{TotalFetches: 0}, s.Snapshot())
}

func TestCounterStore_IncrementsAreWrittenThrough(t *testing.T) {
	b := storage.NewMemBackend()
	s := NewCounterStore(b)

	const n = 25
	for i := 0; i < n; i++ {
		s.Increment(TotalFetches)
	}

	assert.Equal(t, int64(n), s.Get(TotalFetches))
	assert.Equal(t, n, b.Saves(RecordStats))

	raw, ok := b.Raw(RecordStats)
	require.True(t, ok)
	assert.JSONEq(t, `{"totalFetches":25}`, string(raw))
}

func TestCounterStore_ResumesFromPersistedValue(t *testing.T) {
	b := storage.NewMemBackend()
	b.Put(RecordStats, []byte(`{"totalFetches":41}`))

	s := NewCounterStore(b)
	assert.Equal(t, int64(42), s.Increment(TotalFetches))
}

func TestCounterStore_CorruptFallsBackToDefault(t *testing.T) {
	tests := map[string]string{
		"not json":   `{{{`,
		"wrong type": `{"totalFetches":"many"}`,
		"array":      `[1,2,3]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			b := storage.NewMemBackend()
			b.Put(RecordStats, []byte(raw))

			s := NewCounterStore(b)
			assert.Equal(t, int64(0), s.Get(TotalFetches))
		})
	}
}

func TestCounterStore_IgnoresNegativeValues(t *testing.T) {
	b := storage.NewMemBackend()
	b.Put(RecordStats, []byte(`{"totalFetches":-4}`))

	s := NewCounterStore(b)
	assert.Equal(t, int64(0), s.Get(TotalFetches))
}

func TestCounterStore_SaveFailureIsNotFatal(t *testing.T) {
	b := storage.NewMemBackend()
	b.SaveErr = errors.New("disk full")
	s := NewCounterStore(b)

	before := testutil.ToFloat64(metrics.PersistErrors.WithLabelValues(RecordStats))
	assert.Equal(t, int64(1), s.Increment(TotalFetches))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PersistErrors.WithLabelValues(RecordStats)))
}

func TestCounterStore_SurvivesRestartOnDisk(t *testing.T) {
	dir := t.TempDir()

	b1, err := storage.OpenFile(dir)
	require.NoError(t, err)
	s1 := NewCounterStore(b1)
	s1.Increment(TotalFetches)
	s1.Increment(TotalFetches)

	b2, err := storage.OpenFile(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(2), NewCounterStore(b2).Get(TotalFetches))
}

func TestCounterStore_SurvivesRestartInBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	b1, err := storage.OpenBolt(path)
	require.NoError(t, err)
	NewCounterStore(b1).Increment(TotalFetches)
	require.NoError(t, b1.Close())

	b2, err := storage.OpenBolt(path)
	require.NoError(t, err)
	defer b2.Close()
	assert.Equal(t, int64(1), NewCounterStore(b2).Get(TotalFetches))
}

func TestCounterStore_Concurrent(t *testing.T) {
	s := NewCounterStore(storage.NewMemBackend())

	const goroutines = 20
	const perG = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				s.Increment(TotalFetches)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*perG), s.Get(TotalFetches))
}

func TestCounterStore_SnapshotIsACopy(t *testing.T) {
	s := NewCounterStore(storage.NewMemBackend())
	snap := s.Snapshot()
	snap[TotalFetches] = 99
	assert.Equal(t, int64(0), s.Get(TotalFetches))
}
