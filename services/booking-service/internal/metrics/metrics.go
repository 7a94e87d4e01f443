package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "booking"

var (
	once sync.Once

	slotQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_queries_total",
			Help:      "Count of slot queries by outcome.",
		},
		[]string{"outcome"},
	)

	slotsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slots_returned",
			Help:      "Number of slots returned per successful query.",
			Buckets:   []float64{0, 1, 5, 10, 20, 40, 80},
		},
	)

	slotComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_compute_duration_seconds",
			Help:      "Time spent computing slots, including collaborator queries.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_booked_total",
			Help:      "Count of booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Count of status transition requests by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_published_total",
			Help:      "Count of outbox events delivered to Kafka by event type.",
		},
		[]string{"event_type"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(slotQueries, slotsReturned, slotComputeDuration, bookings, transitions, eventsPublished)
	})
}

func ObserveSlotQuery(outcome string, slots int, took time.Duration) {
	slotQueries.WithLabelValues(outcome).Inc()
	slotComputeDuration.Observe(took.Seconds())
	if outcome == "ok" {
		slotsReturned.Observe(float64(slots))
	}
}

func IncBooking(outcome string) {
	bookings.WithLabelValues(outcome).Inc()
}

func IncTransition(action, outcome string) {
	transitions.WithLabelValues(action, outcome).Inc()
}

func IncEventPublished(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}
