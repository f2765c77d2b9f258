package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"component", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "method", "path", "status"},
	)
	controllerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appctl",
			Subsystem: "controller",
			Name:      "calls_total",
			Help:      "Controller calls by operation and outcome.",
		},
		[]string{"target", "operation", "outcome"},
	)
	controllerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appctl",
			Subsystem: "controller",
			Name:      "call_duration_seconds",
			Help:      "Controller call duration in seconds, retries included.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "outcome"},
	)
	controllerRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appctl",
			Subsystem: "controller",
			Name:      "retries_total",
			Help:      "Controller call retries by transport fault kind.",
		},
		[]string{"target", "operation", "fault"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, controllerCalls, controllerCallDuration, controllerRetries)
	})
}

func RecordHTTPRequest(component, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(component, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(component, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCall records one finished controller call. Outcome is "ok" or the
// failure kind.
func RecordCall(target, operation, outcome string, duration time.Duration) {
	RegisterMetrics()
	controllerCalls.WithLabelValues(target, operation, outcome).Inc()
	controllerCallDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

func RecordRetry(target, operation, fault string) {
	RegisterMetrics()
	controllerRetries.WithLabelValues(target, operation, fault).Inc()
}
