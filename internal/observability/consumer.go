package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run event outcomes reported by the consumer.
const (
	EventHandled     = "handled"
	EventFailed      = "handler_error"
	EventUndecodable = "undecodable"
)

var (
	runEventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "endurance",
		Subsystem: "consumer",
		Name:      "run_events_total",
		Help:      "Run events consumed grouped by event type and outcome.",
	}, []string{"event_type", "outcome"})

	runEventDelay = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "endurance",
		Subsystem: "consumer",
		Name:      "run_event_delay_seconds",
		Help:      "Time between a run completing and its event being recorded in the run log.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
	}, []string{"event_type"})

	runLogAppendedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "endurance",
		Subsystem: "consumer",
		Name:      "run_log_activities_appended_total",
		Help:      "Activities appended according to the ingestion events recorded in the run log.",
	})
)

func init() {
	prometheus.MustRegister(runEventsCounter, runEventDelay, runLogAppendedCounter)
}

// RecordRunEvent counts one consumed run event. An empty event type is reported as "unknown".
func RecordRunEvent(eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	runEventsCounter.WithLabelValues(eventType, outcome).Inc()
}

// RecordRunLogged tracks a run written to the run log. Runs without a completion time only
// contribute their appended count.
func RecordRunLogged(eventType string, appended int, completedAt, receivedAt time.Time) {
	runLogAppendedCounter.Add(float64(appended))
	if completedAt.IsZero() || receivedAt.Before(completedAt) {
		return
	}
	runEventDelay.WithLabelValues(eventType).Observe(receivedAt.Sub(completedAt).Seconds())
}
