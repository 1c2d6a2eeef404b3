// Package metrics exposes booking counters to Prometheus. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	bookings             *prometheus.CounterVec
	cancellations        *prometheus.CounterVec
	promotions           prometheus.Counter
	retries              prometheus.Counter
	expired              prometheus.Counter
	notificationFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightseats",
			Name:      "bookings_created_total",
			Help:      "Bookings created, by resulting status.",
		}, []string{"status"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightseats",
			Name:      "bookings_cancelled_total",
			Help:      "Cancellations, by status before cancelling.",
		}, []string{"prior_status"}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightseats",
			Name:      "waitlist_promotions_total",
			Help:      "Waitlisted bookings promoted to confirmed.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightseats",
			Name:      "allocation_retries_total",
			Help:      "Transactions retried after a version conflict or lock contention.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightseats",
			Name:      "waitlist_expired_total",
			Help:      "Waitlisted bookings cancelled by the expiry sweeper.",
		}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightseats",
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.bookings,
		m.cancellations,
		m.promotions,
		m.retries,
		m.expired,
		m.notificationFailures,
	)
	for _, status := range []string{"CONFIRMED", "WAITLISTED"} {
		m.bookings.WithLabelValues(status)
		m.cancellations.WithLabelValues(status)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) BookingCreated(status string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(status).Inc()
}

func (m *Metrics) BookingCancelled(priorStatus string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(priorStatus).Inc()
}

func (m *Metrics) Promoted() {
	if m == nil {
		return
	}
	m.promotions.Inc()
}

func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) Expired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}
