package stats

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developingchet/naas/internal/storage"
)

func sum(m map[string]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}

func TestAnalytics_AddUsesFallbacks(t *testing.T) {
	a := NewAnalytics()
	a.Add(Facets{})

	assert.Equal(t, map[string]int64{"Other": 1}, a.Browser)
	assert.Equal(t, map[string]int64{"Other": 1}, a.OS)
	assert.Equal(t, map[string]int64{"Unknown": 1}, a.Country)
	assert.Equal(t, map[string]int64{"Direct": 1}, a.Referrer)
}

func TestAggregator_FacetTotalsMatchEvents(t *testing.T) {
	b := storage.NewMemBackend()
	g := NewAggregator(b)

	browsers := []string{"Chrome", "Firefox", "Safari", ""}
	oses := []string{"Windows", "macOS", "", "Linux", "Android"}
	countries := []string{"DE", "US", ""}
	referrers := []string{"", "example.com", "Other"}

	const n = 120
	for i := 0; i < n; i++ {
		g.Record(Facets{
			Browser:  browsers[i%len(browsers)],
			OS:       oses[i%len(oses)],
			Country:  countries[i%len(countries)],
			Referrer: referrers[i%len(referrers)],
		})
	}

	snap := g.Snapshot()
	for name, facet := range map[string]map[string]int64{
		"browser": snap.Browser, "os": snap.OS, "country": snap.Country, "referrer": snap.Referrer,
	} {
		assert.Equal(t, int64(n), sum(facet), fmt.Sprintf("facet %s", name))
	}
	assert.Equal(t, n, b.Saves(RecordAnalytics), "one flush per record call")
}

func TestAggregator_PersistedShape(t *testing.T) {
	b := storage.NewMemBackend()
	g := NewAggregator(b)
	g.Record(Facets{Browser: "Chrome", OS: "Windows", Country: "NL", Referrer: "example.com"})

	raw, ok := b.Raw(RecordAnalytics)
	require.True(t, ok)
	assert.JSONEq(t, `{
		"browser": {"Chrome": 1},
		"os": {"Windows": 1},
		"country": {"NL": 1},
		"referrer": {"example.com": 1}
	}`, string(raw))
}

func TestAggregator_LegacyRecordWithoutReferrer(t *testing.T) {
	b := storage.NewMemBackend()
	b.Put(RecordAnalytics, []byte(`{"browser":{"Chrome":4},"os":{"Linux":4},"country":{"FR":4}}`))

	g := NewAggregator(b)
	g.Record(Facets{Browser: "Chrome", OS: "Linux", Country: "FR"})

	snap := g.Snapshot()
	assert.Equal(t, int64(5), snap.Browser["Chrome"])
	assert.Equal(t, map[string]int64{"Direct": 1}, snap.Referrer)
}

func TestAggregator_CorruptRecordStartsEmpty(t *testing.T) {
	b := storage.NewMemBackend()
	b.Put(RecordAnalytics, []byte(`{"browser":[]}`))

	g := NewAggregator(b)
	snap := g.Snapshot()
	assert.Empty(t, snap.Browser)
	assert.NotNil(t, snap.Referrer)
}

func TestAggregator_SnapshotIsDeepCopy(t *testing.T) {
	g := NewAggregator(storage.NewMemBackend())
	g.Record(Facets{Browser: "Chrome"})

	snap := g.Snapshot()
	snap.Browser["Chrome"] = 100
	assert.Equal(t, int64(1), g.Snapshot().Browser["Chrome"])
}
