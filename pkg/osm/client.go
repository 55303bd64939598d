package osm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmxray/pkg/tracing"
)

const (
	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "osmxray/0.1.0"
)

var (
	// Rate limited upstream services keyed by host
	services   = make(map[string]*service)
	servicesMu sync.RWMutex

	// User agent string
	userAgent     = DefaultUserAgent
	userAgentLock sync.RWMutex
)

type service struct {
	name    string
	baseURL string
	limiter *rate.Limiter
}

// RegisterService makes requests to baseURL's host subject to a rate limit
// and reported under name in metrics and traces. Registering the same host
// again replaces the previous limiter.
func RegisterService(name, baseURL string, rps float64, burst int) error {
	host := hostFromURL(baseURL)
	if host == "" {
		return fmt.Errorf("service %s: invalid base URL %q", name, baseURL)
	}
	if burst < 1 {
		burst = 1
	}

	servicesMu.Lock()
	defer servicesMu.Unlock()
	services[host] = &service{
		name:    name,
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
	return nil
}

// ServiceBaseURL returns the base URL registered for name.
func ServiceBaseURL(name string) (string, bool) {
	servicesMu.RLock()
	defer servicesMu.RUnlock()
	for _, s := range services {
		if s.name == name {
			return s.baseURL, true
		}
	}
	return "", false
}

func lookupService(req *http.Request) *service {
	servicesMu.RLock()
	defer servicesMu.RUnlock()
	return services[req.URL.Host]
}

// SetUserAgent sets the User-Agent string
func SetUserAgent(ua string) {
	userAgentLock.Lock()
	defer userAgentLock.Unlock()
	userAgent = ua
}

// GetUserAgent returns the current User-Agent string
func GetUserAgent() string {
	userAgentLock.RLock()
	defer userAgentLock.RUnlock()
	return userAgent
}

// hostFromURL extracts the host from a URL string
func hostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}

// waitForRateLimit waits for the limiter of the service the request goes to.
// Requests to unregistered hosts are not limited.
func waitForRateLimit(ctx context.Context, req *http.Request) error {
	svc := lookupService(req)
	if svc == nil {
		return nil
	}

	if svc.limiter.Allow() {
		return nil
	}

	startWait := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(
			attribute.String(tracing.AttrRateLimitService, svc.name),
		),
	)

	err := svc.limiter.Wait(ctx)

	waitDuration := time.Since(startWait)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, svc.name),
		attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
	)
	return err
}

// NewClient returns an HTTP client whose requests are rate limited per
// registered service, carry the configured User-Agent and are reported to
// the monitoring hooks.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &monitoredTransport{
			base: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// CheckServiceHealth checks that the registered service answers at all.
// Any status below 500 counts as healthy.
func CheckServiceHealth(ctx context.Context, client *http.Client, name string) error {
	baseURL, ok := ServiceBaseURL(name)
	if !ok {
		return fmt.Errorf("service %s is not registered", name)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s health check request: %w", name, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s health check returned status %d", name, resp.StatusCode)
	}
	return nil
}
