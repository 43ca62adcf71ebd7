package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the match module.
type Metrics struct {
	// Confidence score distribution of candidates above the threshold
	CandidateScore prometheus.Histogram

	// Match lifecycle transitions by resulting status
	Transitions *prometheus.CounterVec

	// Full evaluation latency including candidate scan and scoring
	EvaluateLatency prometheus.Histogram

	// Candidates scanned per evaluation
	CandidatesScanned prometheus.Histogram
}

// New creates a new Metrics instance with all match module metrics registered.
func New() *Metrics {
	return &Metrics{
		CandidateScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "findmyid_match_candidate_score",
			Help:    "Confidence scores of candidates that cleared the match threshold",
			Buckets: []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "findmyid_match_transitions_total",
			Help: "Total match lifecycle transitions by resulting status",
		}, []string{"status"}), // status: "pending", "confirmed", "rejected", "completed"

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "findmyid_match_evaluate_duration_seconds",
			Help:    "Duration of a full match evaluation including candidate scan",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		CandidatesScanned: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "findmyid_match_candidates_scanned",
			Help:    "Number of candidate items scanned per evaluation",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// ObserveScore records the confidence of a candidate that cleared the threshold.
func (m *Metrics) ObserveScore(score float64) {
	if m != nil {
		m.CandidateScore.Observe(score)
	}
}

// IncrementTransition records a match lifecycle transition.
func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// ObserveCandidatesScanned records how many candidates one evaluation scanned.
func (m *Metrics) ObserveCandidatesScanned(n int) {
	if m != nil {
		m.CandidatesScanned.Observe(float64(n))
	}
}
