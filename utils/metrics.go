package utils

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentalspot", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rentalspot", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentalspot", Name: "quotes_total", Help: "Price quotes by outcome."},
		[]string{"outcome"},
	)
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentalspot", Name: "booking_operations_total", Help: "Booking lifecycle operations by operation and outcome."},
		[]string{"operation", "outcome"},
	)
	AvailabilityDiscrepancies = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "rentalspot", Name: "availability_discrepancies_total", Help: "Nights where priceCalendars and availability disagreed."},
	)
	SweepResults = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentalspot", Name: "hold_sweep_bookings_total", Help: "Bookings handled by the hold sweeper by result."},
		[]string{"result"}, // expired|skipped|failed
	)
	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rentalspot", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
)

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) {
	CacheEvents.WithLabelValues(cache, event).Inc()
}

// Outcome labels an error for metrics: "ok" or its error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
