package osm

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// MonitoringHooks defines hooks for monitoring HTTP requests
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called when a rate limit is encountered
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when an error occurs
	OnError func(service, errorType string)
}

var (
	// Global monitoring hooks
	globalHooks *MonitoringHooks
	hooksMutex  sync.RWMutex
)

// SetMonitoringHooks sets global monitoring hooks
func SetMonitoringHooks(hooks *MonitoringHooks) {
	hooksMutex.Lock()
	defer hooksMutex.Unlock()
	globalHooks = hooks
}

// getMonitoringHooks returns the current monitoring hooks
func getMonitoringHooks() *MonitoringHooks {
	hooksMutex.RLock()
	defer hooksMutex.RUnlock()
	return globalHooks
}

// monitoredTransport applies rate limits and reports every round trip to
// the monitoring hooks.
type monitoredTransport struct {
	base http.RoundTripper
}

func (t *monitoredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	svcName := getServiceFromRequest(req)
	operation := operationFromPath(req.URL.Path)

	hooks := getMonitoringHooks()
	if hooks != nil && hooks.OnRequest != nil {
		hooks.OnRequest(svcName, operation)
	}

	start := time.Now()
	if err := waitForRateLimit(ctx, req); err != nil {
		if hooks != nil && hooks.OnError != nil {
			hooks.OnError(svcName, "rate_limit_wait_error")
		}
		return nil, err
	}

	// Only track significant waits
	if waitTime := time.Since(start); waitTime > 100*time.Millisecond {
		if hooks != nil && hooks.OnRateLimit != nil {
			hooks.OnRateLimit(svcName, waitTime)
		}
	}

	// RoundTrippers must not modify the caller's request
	req = req.Clone(ctx)
	req.Header.Set("User-Agent", GetUserAgent())

	requestStart := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(requestStart)

	success := err == nil && resp != nil && resp.StatusCode < 400
	if hooks != nil && hooks.OnResponse != nil {
		hooks.OnResponse(svcName, operation, duration, success)
	}
	if err != nil && hooks != nil && hooks.OnError != nil {
		hooks.OnError(svcName, "request_error")
	}

	return resp, err
}

// getServiceFromRequest determines which service is being called based on the request URL
func getServiceFromRequest(req *http.Request) string {
	if svc := lookupService(req); svc != nil {
		return svc.name
	}
	return "unknown"
}

// operationFromPath uses the last path element as operation label, which
// keeps label cardinality bounded for the endpoints we call.
func operationFromPath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
