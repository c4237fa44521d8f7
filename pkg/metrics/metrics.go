package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_events_consumed_total",
			Help: "Total number of bus events consumed, by type and settlement outcome (count)",
		},
		[]string{"event_type", "outcome"},
	)

	EventProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_event_processing_duration_ms",
			Help:    "End-to-end processing duration per event in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"event_type"},
	)

	NotificationsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_notifications_published_total",
			Help: "Total number of notifications fanned out, by channel (count)",
		},
		[]string{"channel"},
	)

	RemindersScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_reminders_scheduled_total",
			Help: "Total number of delayed reminder events republished (count)",
		},
	)

	RemindersExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_reminders_exhausted_total",
			Help: "Total number of reminder chains terminated by an empty retry budget (count)",
		},
	)

	DirectoryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_directory_requests_total",
			Help: "Total number of directory API requests, by endpoint and HTTP status (count)",
		},
		[]string{"endpoint", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_circuit_breaker_failures_total",
			Help: "Total number of failed requests through the circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(EventsConsumedTotal)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(NotificationsPublishedTotal)
	prometheus.MustRegister(RemindersScheduledTotal)
	prometheus.MustRegister(RemindersExhaustedTotal)
}

func RegisterDirectoryMetrics() {
	prometheus.MustRegister(DirectoryRequestsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveEventProcessingDuration(eventType string, duration time.Duration) {
	EventProcessingDuration.WithLabelValues(eventType).Observe(float64(duration.Milliseconds()))
}
