package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "interaction_gateway"

// Outcome label values.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
)

// Metrics groups the gateway's Prometheus collectors.
type Metrics struct {
	EventsReceived   *prometheus.CounterVec
	EventsDispatched *prometheus.CounterVec
	DeadLetters      *prometheus.CounterVec
	PublishBatchSize prometheus.Histogram
	PublishDuration  prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_received_total",
				Help:      "Events received by the gateway, by kind and admission outcome.",
			},
			[]string{"kind", "outcome"},
		),
		EventsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dispatched_total",
				Help:      "Background publish results, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		DeadLetters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_letters_total",
				Help:      "Failed events handed to the dead-letter store, by store outcome.",
			},
			[]string{"outcome"},
		),
		PublishBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_batch_size",
			Help:      "Number of events per broker write.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Latency of broker writes in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
	}
	reg.MustRegister(m.EventsReceived, m.EventsDispatched, m.DeadLetters, m.PublishBatchSize, m.PublishDuration)
	return m
}

// NewNop returns collectors registered nowhere, for tests and tools.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
