package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// GenerationsTotal counts work order generations by outcome (generated, conflict, error).
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workorder_generations_total",
			Help: "Total number of work order generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SchedulesOverdue is the number of active schedules currently past their next due date.
	SchedulesOverdue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "schedules_overdue",
			Help: "Number of active schedules whose next due date is in the past",
		},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	uuidPathSegment    = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, GenerationsTotal, SchedulesOverdue)
	})
}

// NormalizePath reduces cardinality by replacing numeric and UUID path
// segments with {id}. E.g. /schedules/9f3c.../generate -> /schedules/{id}/generate.
func NormalizePath(path string) string {
	path = uuidPathSegment.ReplaceAllString(path, "/{id}$1")
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// IncGenerations increments the generation counter for the given outcome.
func IncGenerations(outcome string) {
	GenerationsTotal.WithLabelValues(outcome).Inc()
}

// SetSchedulesOverdue updates the overdue schedules gauge (set by the scheduler tick).
func SetSchedulesOverdue(n int) {
	SchedulesOverdue.Set(float64(n))
}
