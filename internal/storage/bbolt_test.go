package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

type sample struct {
	TotalFetches int64            `json:"totalFetches"`
	Buckets      map[string]int64 `json:"buckets,omitempty"`
}

func newTestBolt(t *testing.T) *BoltBackend {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltBackend_LoadMissing(t *testing.T) {
	s := newTestBolt(t)
	var v sample
	assert.ErrorIs(t, s.Load("stats", &v), ErrNotFound)
}

func TestBoltBackend_SaveAndLoad(t *testing.T) {
	s := newTestBolt(t)
	require.NoError(t, s.Save("stats", sample{TotalFetches: 42}))

	var v sample
	require.NoError(t, s.Load("stats", &v))
	assert.Equal(t, int64(42), v.TotalFetches)
}

func TestBoltBackend_SaveReplacesWholeRecord(t *testing.T) {
	s := newTestBolt(t)
	require.NoError(t, s.Save("activity", sample{Buckets: map[string]int64{"a": 1, "b": 2}}))
	require.NoError(t, s.Save("activity", sample{Buckets: map[string]int64{"b": 3}}))

	var v sample
	require.NoError(t, s.Load("activity", &v))
	assert.Equal(t, map[string]int64{"b": 3}, v.Buckets)
}

func TestBoltBackend_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s1, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save("stats", sample{TotalFetches: 7}))
	require.NoError(t, s1.Close())

	s2, err := OpenBolt(path)
	require.NoError(t, err)
	defer s2.Close()

	var v sample
	require.NoError(t, s2.Load("stats", &v))
	assert.Equal(t, int64(7), v.TotalFetches)
}

// TestBoltBackend_CorruptRecord injects bytes that are not JSON directly into
// the bucket and confirms Load reports a decode error rather than ErrNotFound.
func TestBoltBackend_CorruptRecord(t *testing.T) {
	s := newTestBolt(t)
	require.NoError(t, s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put([]byte("stats"), []byte("{not json"))
	}))

	var v sample
	err := s.Load("stats", &v)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestBoltBackend_InvalidName(t *testing.T) {
	s := newTestBolt(t)
	assert.Error(t, s.Save("../escape", sample{}))
	assert.Error(t, s.Save("", sample{}))
}

func TestBoltBackend_SizeAndHealthy(t *testing.T) {
	s := newTestBolt(t)
	require.NoError(t, s.Healthy())
	n, err := s.Size()
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Equal(t, "state.db", filepath.Base(s.Path()))
}

func TestBoltBackend_ConcurrentSaves(t *testing.T) {
	s := newTestBolt(t)

	const goroutines = 20
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("record-%d", i)
			if err := s.Save(name, sample{TotalFetches: int64(i)}); err != nil {
				t.Errorf("Save %s: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		var v sample
		require.NoError(t, s.Load(fmt.Sprintf("record-%d", i), &v))
		assert.Equal(t, int64(i), v.TotalFetches)
	}
}
