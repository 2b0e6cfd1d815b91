package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	PatientsCreated prometheus.Counter
	PatientsUpdated prometheus.Counter
	PatientsDeleted prometheus.Counter

	// DegradedSuccess counts operations whose write succeeded but whose
	// billing or publish side effect did not.
	DegradedSuccess prometheus.Counter

	BillingCalls    *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	PublishFailures prometheus.Counter
	OutboxRetries   prometheus.Counter

	AuthFailures    prometheus.Counter
	EndpointLatency *prometheus.HistogramVec

	// Analytics consumer side.
	EventsConsumed  *prometheus.CounterVec
	DuplicateEvents prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PatientsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careflow_patients_created_total",
			Help: "Total number of patients created",
		}),
		PatientsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careflow_patients_updated_total",
			Help: "Total number of patients updated",
		}),
		PatientsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careflow_patients_deleted_total",
			Help: "Total number of patients deleted",
		}),
		DegradedSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careflow_degraded_success_total",
			Help: "Operations persisted but with a failed billing or publish side effect",
		}),
		BillingCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "careflow_billing_calls_total",
			Help: "Billing account calls, labeled by outcome",
		}, []string{"outcome"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "careflow_events_published_total",
			Help: "Patient domain events accepted by the broker, labeled by type",
		}, []string{"type"}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careflow_event_publish_failures_total",
			Help: "Patient domain events the broker did not accept on first attempt",
		}),
		OutboxRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careflow_outbox_retries_total",
			Help: "Events republished by the outbox worker",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careflow_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careflow_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		EventsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "careflow_events_consumed_total",
			Help: "Patient domain events processed by the analytics consumer, labeled by type",
		}, []string{"type"}),
		DuplicateEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careflow_duplicate_events_total",
			Help: "Redelivered events skipped by the dedup store",
		}),
	}
}
