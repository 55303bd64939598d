package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var allCollectors = map[string]prometheus.Collector{
	"events":              EventsTotal,
	"event_duration":      EventDuration,
	"transitions":         SelectionTransitions,
	"feature_state_ops":   FeatureStateOps,
	"active_sessions":     ActiveSessions,
	"sessions_evicted":    SessionsEvicted,
	"mcp_requests":        MCPRequestsTotal,
	"mcp_duration":        MCPRequestDuration,
	"external_requests":   ExternalServiceRequestsTotal,
	"external_duration":   ExternalServiceRequestDuration,
	"rate_limit_exceeded": RateLimitExceeded,
	"rate_limit_wait":     RateLimitWaitTime,
	"cache_hits":          CacheHits,
	"cache_misses":        CacheMisses,
	"cache_size":          CacheSize,
	"active_connections":  ActiveConnections,
	"errors":              ErrorsTotal,
	"system_info":         SystemInfo,
	"goroutines":          GoRoutines,
	"memory_usage":        MemoryUsage,
	"gc_cycles":           GCRuns,
}

func TestMetricsLint(t *testing.T) {
	for name, c := range allCollectors {
		problems, err := testutil.CollectAndLint(c)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		for _, p := range problems {
			t.Errorf("%s: %s: %s", name, p.Metric, p.Text)
		}
	}
}

// TestCounters checks every Record* helper against the series it feeds.
func TestCounters(t *testing.T) {
	tests := []struct {
		name   string
		record func()
		series prometheus.Collector
		want   float64
	}{
		{
			name:   "event success",
			record: func() { RecordEvent("click", time.Millisecond, true) },
			series: EventsTotal.WithLabelValues("click", "success"),
			want:   1,
		},
		{
			name:   "event error",
			record: func() { RecordEvent("pointer-move", time.Millisecond, false) },
			series: EventsTotal.WithLabelValues("pointer-move", "error"),
			want:   1,
		},
		{
			name:   "transition",
			record: func() { RecordTransition("hovering", "locked") },
			series: SelectionTransitions.WithLabelValues("hovering", "locked"),
			want:   1,
		},
		{
			name:   "feature state op",
			record: func() { RecordFeatureStateOp("set"); RecordFeatureStateOp("set") },
			series: FeatureStateOps.WithLabelValues("set"),
			want:   2,
		},
		{
			name:   "session evicted",
			record: func() { RecordSessionEvicted("expired") },
			series: SessionsEvicted.WithLabelValues("expired"),
			want:   1,
		},
		{
			name:   "mcp tool failure",
			record: func() { RecordMCPRequest("session_event", 20*time.Millisecond, false) },
			series: MCPRequestsTotal.WithLabelValues("session_event", "error"),
			want:   1,
		},
		{
			name:   "feature server request",
			record: func() { RecordExternalServiceRequest("featureserver", "items", 50*time.Millisecond, true) },
			series: ExternalServiceRequestsTotal.WithLabelValues("featureserver", "items", "success"),
			want:   1,
		},
		{
			name:   "cache hit",
			record: func() { RecordCacheHit("features") },
			series: CacheHits.WithLabelValues("features"),
			want:   1,
		},
		{
			name:   "cache miss",
			record: func() { RecordCacheMiss("features") },
			series: CacheMisses.WithLabelValues("features"),
			want:   1,
		},
		{
			name:   "rate limited",
			record: func() { RecordRateLimitExceeded("http") },
			series: RateLimitExceeded.WithLabelValues("http"),
			want:   1,
		},
		{
			name:   "error",
			record: func() { RecordError("http", "unauthorized") },
			series: ErrorsTotal.WithLabelValues("http", "unauthorized"),
			want:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(tt.series)
			tt.record()
			if got := testutil.ToFloat64(tt.series) - before; got != tt.want {
				t.Errorf("delta = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelfTransitionsAreSkipped(t *testing.T) {
	SelectionTransitions.Reset()
	RecordTransition("locked", "locked")
	if got := testutil.CollectAndCount(SelectionTransitions); got != 0 {
		t.Errorf("got %d series, want 0", got)
	}
}

func TestGauges(t *testing.T) {
	SetActiveSessions(3)
	if got := testutil.ToFloat64(ActiveSessions); got != 3 {
		t.Errorf("active sessions = %v, want 3", got)
	}

	UpdateCacheSize("features", 42)
	if got := testutil.ToFloat64(CacheSize.WithLabelValues("features")); got != 42 {
		t.Errorf("cache size = %v, want 42", got)
	}

	UpdateActiveConnections("http", "client", 5)
	if got := testutil.ToFloat64(ActiveConnections.WithLabelValues("http", "client")); got != 5 {
		t.Errorf("active connections = %v, want 5", got)
	}
}

func TestHistogramsObserve(t *testing.T) {
	EventDuration.Reset()
	RateLimitWaitTime.Reset()

	RecordEvent("zoom", time.Millisecond, true)
	RecordRateLimitWait("josm", time.Second)

	if got := testutil.CollectAndCount(EventDuration); got != 1 {
		t.Errorf("event duration series = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(RateLimitWaitTime); got != 1 {
		t.Errorf("rate limit wait series = %d, want 1", got)
	}
}

func BenchmarkRecordEvent(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordEvent("pointer-move", 100*time.Microsecond, true)
	}
}

func BenchmarkRecordMCPRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordMCPRequest("session_event", 100*time.Millisecond, true)
	}
}
