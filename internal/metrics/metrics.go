// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the application collectors. A nil *Metrics records nothing.
type Metrics struct {
	attendanceMarked *prometheus.CounterVec
	exports          *prometheus.CounterVec
	statsFailures    prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attendanceMarked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_attendance_marked_total",
			Help: "Attendance rows written, by status.",
		}, []string{"status"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_exports_total",
			Help: "CSV exports attempted, by window and result.",
		}, []string{"window", "result"}),
		statsFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_subject_stats_failures_total",
			Help: "Per-subject statistics lookups that failed during a fan-out.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_http_requests_total",
			Help: "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollcall_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.attendanceMarked, m.exports, m.statsFailures, m.httpRequests, m.httpDuration)
	return m
}

func (m *Metrics) AttendanceMarked(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.attendanceMarked.WithLabelValues(status).Add(float64(n))
}

// Export records one export attempt; result is "ok", "empty" or "error".
func (m *Metrics) Export(window, result string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(window, result).Inc()
}

func (m *Metrics) StatsFailed() {
	if m == nil {
		return
	}
	m.statsFailures.Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
