package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tourbook"

var (
	once sync.Once

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Count of booking lifecycle operations by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_conflicts_total",
			Help:      "Count of requests rejected because the interval was not free.",
		},
		[]string{"operation", "reason"},
	)

	lockWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calendar_lock_wait_seconds",
			Help:      "Time spent waiting to enter a calendar's serializing scope.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	suggestionSearch = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "suggestion_search_seconds",
			Help:      "Duration of alternative slot searches.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Count of lifecycle notifications by event type and outcome.",
		},
		[]string{"type", "outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(transitions, conflicts, lockWait, suggestionSearch, notifications)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveTransition(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	transitions.WithLabelValues(action, outcome).Inc()
}

func IncConflict(operation, reason string) {
	conflicts.WithLabelValues(operation, reason).Inc()
}

func ObserveLockWait(d time.Duration, err error) {
	outcome := "acquired"
	if err != nil {
		outcome = "failed"
	}
	lockWait.WithLabelValues(outcome).Observe(d.Seconds())
}

func ObserveSuggestionSearch(d time.Duration) {
	suggestionSearch.Observe(d.Seconds())
}

func IncNotification(eventType, outcome string) {
	notifications.WithLabelValues(eventType, outcome).Inc()
}
