package apiflow

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsCollectorWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry(registry)

	if collector == nil {
		t.Fatal("NewMetricsCollectorWithRegistry() returned nil")
	}
	if collector.GetRegistry() != registry {
		t.Error("Registry not set correctly")
	}
}

func TestRecordRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry(registry)

	collector.RecordRequest("GET", "/orders", 200, 150*time.Millisecond)
	collector.RecordRequest("GET", "/orders", 200, 50*time.Millisecond)

	if got := testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "200", "/orders")); got != 2 {
		t.Errorf("Expected 2 requests, got %v", got)
	}
	if count := testutil.CollectAndCount(collector.requestDuration); count != 1 {
		t.Errorf("Expected 1 duration series, got %d", count)
	}
}

func TestRecordInFlight(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	collector.RecordRequestStart("POST", "/upload")
	collector.RecordRequestStart("POST", "/upload")
	collector.RecordRequestEnd("POST", "/upload")

	if got := testutil.ToFloat64(collector.requestsInFlight.WithLabelValues("POST", "/upload")); got != 1 {
		t.Errorf("Expected 1 in flight, got %v", got)
	}
}

func TestRecordPipelineEvents(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	collector.RecordRetry("GET", "/a", 1)
	collector.RecordDeduplicationHit("GET", "/a")
	collector.RecordRateLimited("GET", "/a")
	collector.RecordSessionInvalidation("/hr/login")
	collector.RecordTimeout("GET", "/a")
	collector.RecordError(ErrorTypeTimeout, "GET", "/a")
	collector.RecordEvictions("retry", 3, 2)

	expected := `
# HELP apiflow_session_invalidations_total Total number of sessions cleared after a 401
# TYPE apiflow_session_invalidations_total counter
apiflow_session_invalidations_total{login_path="/hr/login"} 1
`
	if err := testutil.CollectAndCompare(collector.sessionInvalidations, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected session invalidation metrics: %v", err)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"retries", testutil.ToFloat64(collector.retriesTotal.WithLabelValues("GET", "/a", "1")), 1},
		{"dedup hits", testutil.ToFloat64(collector.deduplicationHits.WithLabelValues("GET", "/a")), 1},
		{"rate limited", testutil.ToFloat64(collector.rateLimitedTotal.WithLabelValues("GET", "/a")), 1},
		{"timeouts", testutil.ToFloat64(collector.timeoutsTotal.WithLabelValues("GET", "/a")), 1},
		{"errors", testutil.ToFloat64(collector.errorsTotal.WithLabelValues(ErrorTypeTimeout, "GET", "/a")), 1},
		{"evictions", testutil.ToFloat64(collector.janitorEvictions.WithLabelValues("retry")), 3},
		{"tracked", testutil.ToFloat64(collector.trackedEntries.WithLabelValues("retry")), 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestNilMetricsCollector(t *testing.T) {
	var collector *MetricsCollector

	collector.RecordRequest("GET", "/", 200, time.Millisecond)
	collector.RecordRequestStart("GET", "/")
	collector.RecordRequestEnd("GET", "/")
	collector.RecordRetry("GET", "/", 1)
	collector.RecordDeduplicationHit("GET", "/")
	collector.RecordRateLimited("GET", "/")
	collector.RecordSessionInvalidation("/login")
	collector.RecordTimeout("GET", "/")
	collector.RecordError("x", "GET", "/")
	collector.RecordEvictions("dedup", 1, 0)

	if collector.GetRegistry() != nil {
		t.Error("Expected nil registry from nil collector")
	}
}
