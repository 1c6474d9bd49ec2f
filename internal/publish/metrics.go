package publish

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "endurance",
		Subsystem: "publisher",
		Name:      "events_published_total",
		Help:      "Number of run events written to Kafka.",
	}, []string{"event_type"})

	publishFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "endurance",
		Subsystem: "publisher",
		Name:      "publish_failures_total",
		Help:      "Number of run events that could not be written to Kafka.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(publishedCounter, publishFailureCounter)
}

func recordPublished(eventType string) {
	publishedCounter.WithLabelValues(eventType).Inc()
}

func recordPublishFailure(eventType string) {
	publishFailureCounter.WithLabelValues(eventType).Inc()
}
