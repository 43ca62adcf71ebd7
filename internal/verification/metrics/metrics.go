package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Request lifecycle transitions by resulting status
	Transitions *prometheus.CounterVec

	// Time from escalation to a decision being recorded
	DecisionLatency prometheus.Histogram
}

// New creates a new Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "findmyid_verification_transitions_total",
			Help: "Total verification request transitions by resulting status",
		}, []string{"status"}), // status: "pending", "in_review", "confirmed", "rejected", "supervised"

		DecisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "findmyid_verification_decision_duration_seconds",
			Help:    "Time between escalation and the recorded decision",
			Buckets: prometheus.ExponentialBuckets(60, 4, 8), // 1m .. ~11d
		}),
	}
}

// IncrementTransition records a verification request transition.
func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

// ObserveDecisionLatency records how long a request waited for its decision.
func (m *Metrics) ObserveDecisionLatency(d time.Duration) {
	if m != nil {
		m.DecisionLatency.Observe(d.Seconds())
	}
}
