package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newChecker(t testing.TB) *HealthChecker {
	t.Helper()
	hc := NewHealthChecker("test-service", "1.0.0")
	t.Cleanup(hc.Shutdown)
	return hc
}

func connection(t *testing.T, hc *HealthChecker, name string) ConnStatus {
	t.Helper()
	c, ok := hc.GetHealth().Connections[name]
	if !ok {
		t.Fatalf("connection %q not reported", name)
	}
	return c
}

func TestUpdateConnection(t *testing.T) {
	hc := newChecker(t)

	hc.UpdateConnection("featureserver", ConnConnected, 100, nil)
	c := connection(t, hc, "featureserver")
	if c.Status != ConnConnected || c.Latency != 100 || c.LastError != "" {
		t.Errorf("unexpected status %+v", c)
	}
	if c.CheckedAt.IsZero() {
		t.Error("CheckedAt not set")
	}

	hc.UpdateConnection("featureserver", ConnError, 200, errors.New("connection refused"))
	if c := connection(t, hc, "featureserver"); c.LastError != "connection refused" {
		t.Errorf("LastError = %q", c.LastError)
	}

	hc.RemoveConnection("featureserver")
	if _, ok := hc.GetHealth().Connections["featureserver"]; ok {
		t.Error("connection should be gone after removal")
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name  string
		conns []string
		want  string
	}{
		{"no connections", nil, StatusHealthy},
		{"all connected", []string{ConnConnected, ConnConnected}, StatusHealthy},
		{"one slow", []string{ConnConnected, ConnDegraded}, StatusDegraded},
		{"minority failing", []string{ConnConnected, ConnConnected, ConnError}, StatusDegraded},
		{"half failing", []string{ConnConnected, ConnDisconnected}, StatusDegraded},
		{"majority failing", []string{ConnConnected, ConnError, ConnDisconnected}, StatusUnhealthy},
		{"single backend down", []string{ConnDisconnected}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conns := map[string]*ConnStatus{}
			for i, s := range tt.conns {
				conns[string(rune('a'+i))] = &ConnStatus{Status: s}
			}
			if got, _, _ := overallStatus(conns); got != tt.want {
				t.Errorf("overallStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGetHealthFields(t *testing.T) {
	hc := newChecker(t)

	health := hc.GetHealth()
	if health.Service != "test-service" || health.Version != "1.0.0" {
		t.Errorf("unexpected identity %s %s", health.Service, health.Version)
	}
	if health.StartTime.IsZero() || health.Uptime < 0 {
		t.Error("bad start time or uptime")
	}
	if health.Transport != nil {
		t.Error("Transport should be nil until set")
	}
	for _, key := range []string{"goroutines", "memory_alloc_mb", "cpu_count", "active_sessions"} {
		if _, ok := health.Metrics[key]; !ok {
			t.Errorf("Metrics should contain %s", key)
		}
	}
}

func TestGetHealthTransport(t *testing.T) {
	hc := newChecker(t)

	hc.SetTransport(TransportInfo{Type: "http+stdio", HTTPAddr: ":7082"})
	hc.SetSessionCounter(func() int { return 4 })

	health := hc.GetHealth()
	if health.Transport == nil {
		t.Fatal("Transport should be set")
	}
	if health.Transport.Type != "http+stdio" || health.Transport.ActiveSessions != 4 {
		t.Errorf("unexpected transport %+v", health.Transport)
	}
	if health.Metrics["active_sessions"] != 4 {
		t.Errorf("active_sessions = %v", health.Metrics["active_sessions"])
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name      string
		down      bool
		handler   func(*HealthChecker) http.HandlerFunc
		wantCode  int
		wantField string
		wantValue any
	}{
		{"health ok", false, (*HealthChecker).HealthHandler, http.StatusOK, "status", StatusHealthy},
		{"health down", true, (*HealthChecker).HealthHandler, http.StatusServiceUnavailable, "status", StatusUnhealthy},
		{"ready ok", false, (*HealthChecker).ReadinessHandler, http.StatusOK, "ready", true},
		{"ready down", true, (*HealthChecker).ReadinessHandler, http.StatusServiceUnavailable, "ready", false},
		{"live while down", true, (*HealthChecker).LivenessHandler, http.StatusOK, "alive", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := newChecker(t)
			if tt.down {
				hc.UpdateConnection("featureserver", ConnDisconnected, 0, errors.New("timeout"))
			}

			w := httptest.NewRecorder()
			tt.handler(hc)(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body[tt.wantField] != tt.wantValue {
				t.Errorf("%s = %v, want %v", tt.wantField, body[tt.wantField], tt.wantValue)
			}
		})
	}
}

// waitForConnection polls until the monitor has reported name.
func waitForConnection(t *testing.T, hc *HealthChecker, name string) ConnStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, ok := hc.GetHealth().Connections[name]; ok {
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("monitor never reported %s", name)
	return ConnStatus{}
}

func TestConnectionMonitor(t *testing.T) {
	blocked := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	slow := func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		return nil
	}

	tests := []struct {
		name    string
		check   CheckFunc
		cfg     MonitorConfig
		want    string
		wantErr string
	}{
		{"success", func(context.Context) error { return nil }, MonitorConfig{Interval: time.Minute}, ConnConnected, ""},
		{"error", func(context.Context) error { return errors.New("HTTP 500") }, MonitorConfig{Interval: time.Minute}, ConnError, "HTTP 500"},
		{"timeout", blocked, MonitorConfig{Interval: time.Minute, Timeout: 20 * time.Millisecond}, ConnDisconnected, context.DeadlineExceeded.Error()},
		{"slow", slow, MonitorConfig{Interval: time.Minute, SlowAfter: 10 * time.Millisecond}, ConnDegraded, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := newChecker(t)
			m := NewConnectionMonitor("featureserver", hc, tt.check, tt.cfg)
			m.Start()
			t.Cleanup(m.Stop)

			c := waitForConnection(t, hc, "featureserver")
			if c.Status != tt.want || c.LastError != tt.wantErr {
				t.Errorf("got %s %q, want %s %q", c.Status, c.LastError, tt.want, tt.wantErr)
			}
		})
	}
}

func TestConnectionMonitorDefaults(t *testing.T) {
	hc := newChecker(t)
	m := NewConnectionMonitor("featureserver", hc, func(context.Context) error { return nil }, MonitorConfig{})
	defer m.Stop()

	if m.cfg.Interval != DefaultMonitorConfig().Interval || m.cfg.Timeout != m.cfg.Interval {
		t.Errorf("unexpected defaults %+v", m.cfg)
	}
}

func TestConnectionMonitorStop(t *testing.T) {
	hc := newChecker(t)
	calls := make(chan struct{}, 100)
	m := NewConnectionMonitor("featureserver", hc, func(context.Context) error {
		calls <- struct{}{}
		return nil
	}, MonitorConfig{Interval: 10 * time.Millisecond})
	m.Start()
	waitForConnection(t, hc, "featureserver")
	m.Stop()

	time.Sleep(30 * time.Millisecond)
	n := len(calls)
	time.Sleep(50 * time.Millisecond)
	if len(calls) != n {
		t.Errorf("check ran %d more times after Stop", len(calls)-n)
	}
}

func BenchmarkGetHealth(b *testing.B) {
	hc := newChecker(b)
	hc.UpdateConnection("featureserver", ConnConnected, 100, nil)
	hc.UpdateConnection("tiles", ConnError, 300, errors.New("test error"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hc.GetHealth()
	}
}
