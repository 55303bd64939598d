package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/NERVsystems/osmxray/pkg/version"
)

// Service states reported by /health.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Connection states.
const (
	ConnConnected    = "connected"
	ConnDegraded     = "degraded"
	ConnError        = "error"
	ConnDisconnected = "disconnected"
)

// HealthChecker tracks backend connections and reports service health
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time
	mu          sync.RWMutex
	connections map[string]*ConnStatus
	transport   *TransportInfo
	sessions    func() int
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}

	go hc.collectSystemMetrics()

	return hc
}

// SetTransport records how the service is reachable.
func (h *HealthChecker) SetTransport(info TransportInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = &info
}

// SetSessionCounter installs the function reporting live viewer sessions.
func (h *HealthChecker) SetSessionCounter(f func() int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = f
}

// UpdateConnection records the latest check of a backend connection.
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	c := &ConnStatus{
		Status:    status,
		Latency:   latencyMs,
		CheckedAt: time.Now(),
	}
	if err != nil {
		c.LastError = err.Error()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[name] = c
}

// RemoveConnection removes a connection from monitoring
func (h *HealthChecker) RemoveConnection(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, name)
}

// overallStatus degrades with any failing connection and turns unhealthy
// once more than half of them fail.
func overallStatus(conns map[string]*ConnStatus) (status string, failing, degraded int) {
	for _, c := range conns {
		switch c.Status {
		case ConnError, ConnDisconnected:
			failing++
		case ConnDegraded:
			degraded++
		}
	}
	switch {
	case failing > len(conns)/2:
		return StatusUnhealthy, failing, degraded
	case failing > 0 || degraded > 0:
		return StatusDegraded, failing, degraded
	}
	return StatusHealthy, failing, degraded
}

// GetHealth returns the current health status
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, failing, degraded := overallStatus(h.connections)

	connections := make(map[string]ConnStatus, len(h.connections))
	for k, v := range h.connections {
		connections[k] = *v
	}

	sessions := 0
	if h.sessions != nil {
		sessions = h.sessions()
	}
	var transport *TransportInfo
	if h.transport != nil {
		t := *h.transport
		t.ActiveSessions = sessions
		transport = &t
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)
	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		Uptime:        uptime,
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		Connections:   connections,
		Transport:     transport,
		Metrics: map[string]interface{}{
			"goroutines":           runtime.NumGoroutine(),
			"memory_alloc_mb":      m.Alloc / 1024 / 1024,
			"memory_sys_mb":        m.Sys / 1024 / 1024,
			"gc_runs":              m.NumGC,
			"cpu_count":            runtime.NumCPU(),
			"version_info":         version.Info(),
			"active_sessions":      sessions,
			"total_connections":    len(h.connections),
			"error_connections":    failing,
			"degraded_connections": degraded,
		},
	}
}

func writeHealthJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HealthHandler serves the full health report. Unhealthy answers 503.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeHealthJSON(w, code, health)
	}
}

// ReadinessHandler reports whether the service should receive traffic.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		ready := health.Status != StatusUnhealthy
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeHealthJSON(w, code, map[string]interface{}{
			"ready":  ready,
			"status": health.Status,
		})
	}
}

// LivenessHandler answers as long as the process serves HTTP.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealthJSON(w, http.StatusOK, map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).String(),
		})
	}
}

// collectSystemMetrics periodically collects and updates system metrics
func (h *HealthChecker) collectSystemMetrics() {
	h.updateSystemMetrics()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates Prometheus metrics with current system state
func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))
	GCRuns.Set(float64(m.NumGC))

	h.mu.RLock()
	sessions := h.sessions
	h.mu.RUnlock()
	if sessions != nil {
		SetActiveSessions(sessions())
	}

	info := version.Info()
	SystemInfo.WithLabelValues(
		info["version"],
		info["go_version"],
		info["commit"],
		info["build_date"],
	).Set(1)
}

// Shutdown stops the metrics collector.
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// CheckFunc checks one backend. It must return when ctx ends.
type CheckFunc func(ctx context.Context) error

// MonitorConfig sets how often and how patiently a backend is checked.
type MonitorConfig struct {
	Interval time.Duration
	// Timeout bounds one check.
	Timeout time.Duration
	// SlowAfter marks a successful check that took longer as degraded.
	// Zero disables it.
	SlowAfter time.Duration
}

// DefaultMonitorConfig checks every 30 seconds.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:  30 * time.Second,
		Timeout:   10 * time.Second,
		SlowAfter: 2 * time.Second,
	}
}

// ConnectionMonitor checks a backend periodically and reports the result
// to a HealthChecker.
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	check         CheckFunc
	cfg           MonitorConfig
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewConnectionMonitor creates a monitor for the backend called name.
func NewConnectionMonitor(name string, hc *HealthChecker, check CheckFunc, cfg MonitorConfig) *ConnectionMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMonitorConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		check:         check,
		cfg:           cfg,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins monitoring the connection
func (cm *ConnectionMonitor) Start() {
	go cm.monitor()
}

// Stop stops monitoring the connection
func (cm *ConnectionMonitor) Stop() {
	cm.cancel()
}

func (cm *ConnectionMonitor) monitor() {
	cm.performCheck()

	ticker := time.NewTicker(cm.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

// performCheck runs one check and records its outcome.
func (cm *ConnectionMonitor) performCheck() {
	ctx, cancel := context.WithTimeout(cm.ctx, cm.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := cm.check(ctx)
	took := time.Since(start)
	if cm.ctx.Err() != nil {
		// Stopped mid-check.
		return
	}

	status := ConnConnected
	switch {
	case err != nil && ctx.Err() != nil:
		status = ConnDisconnected
	case err != nil:
		status = ConnError
	case cm.cfg.SlowAfter > 0 && took > cm.cfg.SlowAfter:
		status = ConnDegraded
	}

	RecordExternalServiceRequest(cm.name, "health_check", took, err == nil)
	cm.healthChecker.UpdateConnection(cm.name, status, took.Milliseconds(), err)
}
