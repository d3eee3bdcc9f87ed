// Package metrics defines package-level Prometheus metric variables for naas.
// Call Register() once at startup to expose them on the default registry, or
// RegisterWith() to use an isolated registry in tests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ReasonsServed counts every /reason response that carried a reason,
	// labelled by client kind (human|bot).
	ReasonsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naas_reasons_served_total",
		Help: "Reasons served, by client kind (human|bot).",
	}, []string{"client"})

	// BotsDetected counts requests classified as automated, by matched rule.
	BotsDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naas_bots_detected_total",
		Help: "Requests classified as automated agents, by matched rule.",
	}, []string{"rule"})

	// BotsLimited counts bot requests denied by the bot window limiter.
	BotsLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "naas_bots_limited_total",
		Help: "Bot requests denied with 403 by the bot rate limiter.",
	})

	// ClientsLimited counts requests rejected by the general per-IP limiter.
	ClientsLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "naas_clients_limited_total",
		Help: "Requests rejected with 429 by the per-IP rate limiter.",
	})

	// PersistErrors counts failed snapshot writes, labelled by record.
	// Valid records: stats, activity, analytics.
	PersistErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naas_persist_errors_total",
		Help: "Failed state snapshot writes, by record (stats|activity|analytics).",
	}, []string{"record"})

	// ActivityPruned counts activity buckets dropped by retention.
	ActivityPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "naas_activity_pruned_buckets_total",
		Help: "Hourly activity buckets removed for falling outside retention.",
	})

	// MalformedBuckets counts activity keys that could not be parsed.
	MalformedBuckets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "naas_activity_malformed_buckets_total",
		Help: "Activity bucket keys skipped because they do not parse to a calendar hour.",
	})

	// TrackedBotWindows is a gauge of live per-IP bot windows.
	TrackedBotWindows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "naas_bot_windows",
		Help: "Per-IP bot rate-limit windows currently held in memory.",
	})

	// StateSizeBytes is the on-disk size of persisted state.
	StateSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "naas_state_size_bytes",
		Help: "Bytes used on disk by persisted counters, activity and analytics.",
	})
)

// Register registers all metrics with prometheus.DefaultRegisterer.
// Call once at process startup.
func Register() {
	RegisterWith(prometheus.DefaultRegisterer)
}

// RegisterWith registers all metrics with the given registerer.
// Use an isolated prometheus.NewRegistry() in tests to avoid conflicts.
func RegisterWith(reg prometheus.Registerer) {
	reg.MustRegister(
		ReasonsServed,
		BotsDetected,
		BotsLimited,
		ClientsLimited,
		PersistErrors,
		ActivityPruned,
		MalformedBuckets,
		TrackedBotWindows,
		StateSizeBytes,
	)
}
