package osm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type hookRecorder struct {
	mu        sync.Mutex
	requests  []string
	responses []bool
	errors    []string
}

func (h *hookRecorder) hooks() *MonitoringHooks {
	return &MonitoringHooks{
		OnRequest: func(service, operation string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.requests = append(h.requests, service+"/"+operation)
		},
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.responses = append(h.responses, success)
		},
		OnError: func(service, errorType string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.errors = append(h.errors, errorType)
		},
	}
}

func TestGetServiceFromRequest(t *testing.T) {
	if err := RegisterService("featureserver", "http://features.example.org:9000/", 10, 1); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "Registered host",
			url:      "http://features.example.org:9000/functions/postgisftw.way/items?osm_id=7",
			expected: "featureserver",
		},
		{
			name:     "Same host other port",
			url:      "http://features.example.org/functions",
			expected: "unknown",
		},
		{
			name:     "Unknown URL",
			url:      "https://example.com/api",
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest("GET", tt.url, nil)
			if err != nil {
				t.Fatalf("Failed to create request: %v", err)
			}

			if got := getServiceFromRequest(req); got != tt.expected {
				t.Errorf("Expected service %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestRegisterServiceInvalidURL(t *testing.T) {
	if err := RegisterService("broken", "::not a url", 1, 1); err == nil {
		t.Error("expected error for invalid base URL")
	}
}

func TestMonitoredClientSuccess(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := RegisterService("testsvc", server.URL, 100, 10); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}

	rec := &hookRecorder{}
	SetMonitoringHooks(rec.hooks())
	defer SetMonitoringHooks(nil)

	client := NewClient(5 * time.Second)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL+"/functions/items", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotUA != DefaultUserAgent {
		t.Errorf("expected User-Agent %q, got %q", DefaultUserAgent, gotUA)
	}
	if len(rec.requests) != 1 || rec.requests[0] != "testsvc/items" {
		t.Errorf("unexpected request hooks: %v", rec.requests)
	}
	if len(rec.responses) != 1 || !rec.responses[0] {
		t.Errorf("expected one successful response, got %v", rec.responses)
	}
}

func TestMonitoredClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	rec := &hookRecorder{}
	SetMonitoringHooks(rec.hooks())
	defer SetMonitoringHooks(nil)

	resp, err := NewClient(5 * time.Second).Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if len(rec.responses) != 1 || rec.responses[0] {
		t.Errorf("expected one failed response, got %v", rec.responses)
	}
}

func TestMonitoredClientRateLimitCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// One request per hour: the second request has to wait and is cancelled.
	if err := RegisterService("slow", server.URL, 1.0/3600, 1); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}

	rec := &hookRecorder{}
	SetMonitoringHooks(rec.hooks())
	defer SetMonitoringHooks(nil)

	client := NewClient(5 * time.Second)
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if _, err := client.Do(req); err == nil {
		t.Fatal("expected rate limited request to fail")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) == 0 || rec.errors[0] != "rate_limit_wait_error" {
		t.Errorf("expected rate_limit_wait_error, got %v", rec.errors)
	}
}

func TestOperationFromPath(t *testing.T) {
	tests := map[string]string{
		"":                                  "root",
		"/":                                 "root",
		"/load_and_zoom":                    "load_and_zoom",
		"/functions/postgisftw.node/items/": "items",
	}
	for path, want := range tests {
		if got := operationFromPath(path); got != want {
			t.Errorf("operationFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestCheckServiceHealth(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	if err := RegisterService("health", server.URL, 100, 10); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	client := NewClient(5 * time.Second)

	if err := CheckServiceHealth(context.Background(), client, "health"); err != nil {
		t.Errorf("expected healthy service, got %v", err)
	}

	status = http.StatusServiceUnavailable
	if err := CheckServiceHealth(context.Background(), client, "health"); err == nil {
		t.Error("expected error for 503")
	}

	if err := CheckServiceHealth(context.Background(), client, "missing"); err == nil {
		t.Error("expected error for unregistered service")
	}
}
