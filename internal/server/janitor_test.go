package server

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developingchet/naas/internal/config"
	"github.com/developingchet/naas/internal/metrics"
	"github.com/developingchet/naas/internal/stats"
	"github.com/developingchet/naas/internal/storage"
)

func TestMaintain_PrunesExpiredState(t *testing.T) {
	backend := storage.NewMemBackend()
	backend.Put(stats.RecordActivity, []byte(`{"2020-01-01-00": 4, "not-a-bucket": 1}`))
	ts := newTestServerWith(t, testConfig(), backend)

	ts.get(t, "/reason", map[string]string{"User-Agent": curlUA, "CF-Connecting-IP": "203.0.113.5"})
	ts.get(t, "/stats", map[string]string{"CF-Connecting-IP": "203.0.113.6"})
	ts.get(t, "/reason", map[string]string{"User-Agent": chromeUA})
	require.Equal(t, 1, ts.bots.Len())
	require.Equal(t, 3, ts.clients.Len())

	ts.advance(2 * time.Minute)
	ts.maintain(ts.clock)

	assert.Equal(t, 0, ts.bots.Len())
	assert.Equal(t, 0, ts.clients.Len())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.TrackedBotWindows))

	activity := ts.activity.Snapshot()
	assert.NotContains(t, activity, "2020-01-01-00")
	assert.Contains(t, activity, "not-a-bucket", "malformed keys are kept")
	assert.Equal(t, int64(1), activity[stats.BucketKey(ts.clock.Add(-2*time.Minute), time.Local)])
}

func TestMaintain_KeepsLiveWindows(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.BotLimit = 1 })
	hdr := map[string]string{"User-Agent": curlUA, "CF-Connecting-IP": "203.0.113.5"}

	ts.get(t, "/reason", hdr)
	ts.advance(30 * time.Second)
	ts.maintain(ts.clock)

	assert.Equal(t, 1, ts.bots.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TrackedBotWindows))
	assert.Equal(t, 403, ts.get(t, "/reason", hdr).Code, "pruning must not reset a live window")
}

func TestRunJanitor_StopsOnContextCancel(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runJanitor(ctx, ts.Server, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop within 1s of context cancellation")
	}
}

func TestRunJanitor_Ticks(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.get(t, "/reason", map[string]string{"User-Agent": curlUA, "CF-Connecting-IP": "203.0.113.5"})
	ts.advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runJanitor(ctx, ts.Server, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ts.bots.Len() == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
