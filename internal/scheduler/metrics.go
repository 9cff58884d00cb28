package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Notification outcomes used as the "outcome" label.
const (
	outcomeSent          = "sent"
	outcomeSendFailed    = "send_failed"
	outcomePersistFailed = "persist_failed"
)

var (
	// notifications counts processed due items by kind and outcome.
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_notifications_total",
			Help: "Reminder notifications processed by the scheduler.",
		},
		[]string{"kind", "outcome"},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_tick_duration_seconds",
			Help:    "Duration of one scheduler tick in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// dueItems is the number of due notifications found by the last tick.
	dueItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_due_items",
			Help: "Due notifications collected by the last scheduler tick.",
		},
	)
)

func init() {
	prometheus.MustRegister(notifications, tickDuration, dueItems)
}
