package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notification module.
type Metrics struct {
	// Notifications persisted, by type
	Delivered *prometheus.CounterVec

	// Redeliveries dropped by the event-ID idempotency guard
	DuplicatesDropped prometheus.Counter

	// Unread counter lookups by outcome
	UnreadLookups *prometheus.CounterVec
}

// New creates a new Metrics instance with all notification metrics registered.
func New() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "findmyid_notifications_delivered_total",
			Help: "Total notifications persisted, by type",
		}, []string{"type"}),

		DuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "findmyid_notifications_duplicates_dropped_total",
			Help: "Redelivered events dropped by the idempotency guard",
		}),

		UnreadLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "findmyid_notifications_unread_lookups_total",
			Help: "Unread counter lookups by outcome",
		}, []string{"outcome"}), // outcome: "cache_hit", "store"
	}
}

// IncrementDelivered records a persisted notification.
func (m *Metrics) IncrementDelivered(kind string) {
	if m != nil {
		m.Delivered.WithLabelValues(kind).Inc()
	}
}

// IncrementDuplicate records a dropped redelivery.
func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.DuplicatesDropped.Inc()
	}
}

// IncrementUnreadLookup records where an unread count was answered from.
func (m *Metrics) IncrementUnreadLookup(outcome string) {
	if m != nil {
		m.UnreadLookups.WithLabelValues(outcome).Inc()
	}
}
