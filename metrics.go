package apiflow

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request pipeline.
// All methods are no-ops on a nil receiver.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	deduplicationHits *prometheus.CounterVec

	rateLimitedTotal     *prometheus.CounterVec
	sessionInvalidations *prometheus.CounterVec
	timeoutsTotal        *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	janitorEvictions *prometheus.CounterVec
	trackedEntries   *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)

	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiflow_requests_total",
				Help: "Total number of logical API requests",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apiflow_request_duration_seconds",
				Help:    "Duration of logical API requests in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "apiflow_requests_in_flight",
				Help: "Number of logical API requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiflow_retries_total",
				Help: "Total number of scheduled retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		deduplicationHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiflow_deduplication_hits_total",
				Help: "Total number of duplicate requests suppressed",
			},
			[]string{"method", "endpoint"},
		),
		rateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiflow_rate_limited_total",
				Help: "Total number of 429 responses that triggered a delayed replay",
			},
			[]string{"method", "endpoint"},
		),
		sessionInvalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiflow_session_invalidations_total",
				Help: "Total number of sessions cleared after a 401",
			},
			[]string{"login_path"},
		),
		timeoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiflow_timeouts_total",
				Help: "Total number of attempts abandoned by the timeout guard",
			},
			[]string{"method", "endpoint"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiflow_errors_total",
				Help: "Total number of failed logical requests by error type",
			},
			[]string{"type", "method", "endpoint"},
		),
		janitorEvictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apiflow_janitor_evictions_total",
				Help: "Total number of stale bookkeeping entries evicted by the janitor",
			},
			[]string{"registry"},
		),
		trackedEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "apiflow_tracked_entries",
				Help: "Bookkeeping entries held after the last sweep",
			},
			[]string{"registry"},
		),
	}

	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}

	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordDeduplicationHit increments the suppressed-duplicate counter.
func (mc *MetricsCollector) RecordDeduplicationHit(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.deduplicationHits.WithLabelValues(method, endpoint).Inc()
}

// RecordRateLimited increments the 429 replay counter.
func (mc *MetricsCollector) RecordRateLimited(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.rateLimitedTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordSessionInvalidation increments the session invalidation counter.
func (mc *MetricsCollector) RecordSessionInvalidation(loginPath string) {
	if mc == nil {
		return
	}

	mc.sessionInvalidations.WithLabelValues(loginPath).Inc()
}

// RecordTimeout increments the timeout counter.
func (mc *MetricsCollector) RecordTimeout(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.timeoutsTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// RecordEvictions adds to the janitor eviction counter and sets the size
// gauge for registry.
func (mc *MetricsCollector) RecordEvictions(registry string, evicted, remaining int) {
	if mc == nil {
		return
	}

	mc.janitorEvictions.WithLabelValues(registry).Add(float64(evicted))
	mc.trackedEntries.WithLabelValues(registry).Set(float64(remaining))
}

// GetRegistry exposes the underlying prometheus registry, or nil when the
// collector was built on a plain Registerer.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}
