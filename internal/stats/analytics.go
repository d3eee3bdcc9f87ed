package stats

import (
	"sync"

	"github.com/developingchet/naas/internal/storage"
)

// Fallback labels recorded when a facet value is empty.
const (
	FallbackBrowser  = "Other"
	FallbackOS       = "Other"
	FallbackCountry  = "Unknown"
	FallbackReferrer = "Direct"
)

// Facets is one classified request as seen by the aggregator.
type Facets struct {
	Browser  string
	OS       string
	Country  string
	Referrer string
}

// Analytics tallies requests along four independent facets.
type Analytics struct {
	Browser  map[string]int64 `json:"browser"`
	OS       map[string]int64 `json:"os"`
	Country  map[string]int64 `json:"country"`
	Referrer map[string]int64 `json:"referrer"`
}

// NewAnalytics returns empty tallies for every facet.
func NewAnalytics() Analytics {
	a := Analytics{}
	a.fill()
	return a
}

// fill creates any facet map that is missing, e.g. referrer in records
// written before it was tracked.
func (a *Analytics) fill() {
	if a.Browser == nil {
		a.Browser = map[string]int64{}
	}
	if a.OS == nil {
		a.OS = map[string]int64{}
	}
	if a.Country == nil {
		a.Country = map[string]int64{}
	}
	if a.Referrer == nil {
		a.Referrer = map[string]int64{}
	}
}

// Add counts f once in every facet, substituting fallbacks for empty values.
func (a Analytics) Add(f Facets) {
	a.Browser[orDefault(f.Browser, FallbackBrowser)]++
	a.OS[orDefault(f.OS, FallbackOS)]++
	a.Country[orDefault(f.Country, FallbackCountry)]++
	a.Referrer[orDefault(f.Referrer, FallbackReferrer)]++
}

func (a Analytics) clone() Analytics {
	return Analytics{
		Browser:  cloneCounts(a.Browser),
		OS:       cloneCounts(a.OS),
		Country:  cloneCounts(a.Country),
		Referrer: cloneCounts(a.Referrer),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Aggregator is the write-through store for Analytics.
type Aggregator struct {
	mu      sync.Mutex
	backend storage.Backend
	state   Analytics
}

// NewAggregator loads persisted analytics, starting empty if none are usable.
func NewAggregator(b storage.Backend) *Aggregator {
	state, ok := load[Analytics](b, RecordAnalytics)
	if !ok {
		state = NewAnalytics()
	}
	state.fill()
	return &Aggregator{backend: b, state: state}
}

// Record updates all four facets, then flushes once.
func (g *Aggregator) Record(f Facets) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Add(f)
	persist(g.backend, RecordAnalytics, g.state)
}

// Snapshot returns a deep copy safe to encode without holding the lock.
func (g *Aggregator) Snapshot() Analytics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.clone()
}
