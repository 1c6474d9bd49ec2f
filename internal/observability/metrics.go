// Package observability owns the process-wide Prometheus collectors and logger construction.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "endurance",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs grouped by operation and outcome.",
	}, []string{"operation", "outcome"})

	activitiesAppendedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "endurance",
		Subsystem: "pipeline",
		Name:      "activities_appended_total",
		Help:      "Activities appended to the cumulative store.",
	})

	duplicatesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "endurance",
		Subsystem: "pipeline",
		Name:      "activities_duplicate_total",
		Help:      "Scraped activities skipped because their identifier was already stored.",
	})

	athletesSyncedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "endurance",
		Subsystem: "pipeline",
		Name:      "athletes_synchronized_total",
		Help:      "Athlete metadata rows rewritten by the synchronizer.",
	})

	divergenceGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "endurance",
		Subsystem: "pipeline",
		Name:      "counter_divergences",
		Help:      "Athletes whose weeks-scraped counters disagree after the last check.",
	})

	lastSuccessGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "endurance",
		Subsystem: "pipeline",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful run per operation.",
	}, []string{"operation"})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "endurance",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Wall time of pipeline runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	mirrorDocumentsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "endurance",
		Subsystem: "mirror",
		Name:      "documents",
		Help:      "Documents in each mirrored collection after the last refresh.",
	}, []string{"collection"})

	mirrorRefreshGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "endurance",
		Subsystem: "mirror",
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful mirror refresh.",
	})
)

// Collectors lists every collector owned by this package, for pushing from batch processes.
var Collectors = []prometheus.Collector{
	runsCounter,
	activitiesAppendedCounter,
	duplicatesCounter,
	athletesSyncedCounter,
	divergenceGauge,
	lastSuccessGauge,
	runDuration,
	mirrorDocumentsGauge,
	mirrorRefreshGauge,
}

func init() {
	prometheus.MustRegister(Collectors...)
}

// RecordRun tracks the outcome and duration of one pipeline operation.
func RecordRun(operation string, started time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	runsCounter.WithLabelValues(operation, outcome).Inc()
	runDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err == nil {
		lastSuccessGauge.WithLabelValues(operation).Set(float64(time.Now().Unix()))
	}
}

// RecordIngestion adds the row counts of an ingestion run.
func RecordIngestion(appended, duplicates int) {
	activitiesAppendedCounter.Add(float64(appended))
	duplicatesCounter.Add(float64(duplicates))
}

// RecordSynchronized adds the number of athletes rewritten.
func RecordSynchronized(athletes int) {
	athletesSyncedCounter.Add(float64(athletes))
}

// RecordDivergences sets the current number of diverged athletes.
func RecordDivergences(n int) {
	divergenceGauge.Set(float64(n))
}

// RecordMirrorRefresh updates the per-collection document counts.
func RecordMirrorRefresh(counts map[string]int, ts time.Time) {
	for collection, n := range counts {
		mirrorDocumentsGauge.WithLabelValues(collection).Set(float64(n))
	}
	if !ts.IsZero() {
		mirrorRefreshGauge.Set(float64(ts.Unix()))
	}
}
