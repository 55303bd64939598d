package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/monitoring"
	"github.com/NERVsystems/osmxray/pkg/session"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string   `json:"addr"`             // HTTP server address (e.g., ":7082")
	BaseURL        string   `json:"base_url"`         // Base URL for service discovery
	AuthType       string   `json:"auth_type"`        // Authentication type: "bearer", "basic", "none"
	AuthToken      string   `json:"auth_token"`       // Authentication token
	MCPEndpoint    string   `json:"mcp_endpoint"`     // Streamable HTTP endpoint path (default: "/mcp")
	RateLimit      float64  `json:"rate_limit"`       // Requests per second per IP (0 = disabled)
	RateBurst      int      `json:"rate_burst"`       // Burst size for rate limiter
	MaxRequestSize int64    `json:"max_request_size"` // Maximum request body size in bytes
	MaxHeaderBytes int      `json:"max_header_bytes"` // Maximum header size in bytes
	AllowedOrigins []string `json:"allowed_origins"`  // Origins allowed to call the API from a browser
	TLSCertFile    string   `json:"tls_cert_file"`    // Path to TLS certificate file
	TLSKeyFile     string   `json:"tls_key_file"`     // Path to TLS private key file
	ForceHTTPS     bool     `json:"force_https"`      // Force HTTPS redirect for HTTP requests
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		AuthType:       "none",
		MCPEndpoint:    "/mcp",
		RateLimit:      50, // pointer events arrive in bursts
		RateBurst:      100,
		MaxRequestSize: 1 << 20, // 1 MB
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
}

// HTTPTransport serves the viewer API, the health endpoints and the MCP
// Streamable HTTP endpoint on one listener.
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	mcpHTTP       *mcpserver.StreamableHTTPServer
	api           *API
	auth          *core.Authenticator
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	mu            sync.RWMutex
}

// NewHTTPTransport creates a new HTTP transport instance
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, sessions *session.Manager, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http_transport")
	if config.MCPEndpoint == "" {
		config.MCPEndpoint = "/mcp"
	}

	auth := core.NewAuthenticator(config.AuthType, config.AuthToken)
	if auth.Enabled() {
		if err := core.CheckToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token", "error", err)
		}
	}

	t := &HTTPTransport{
		config: config,
		logger: logger,
		mcpHTTP: mcpserver.NewStreamableHTTPServer(mcpServer,
			mcpserver.WithEndpointPath(config.MCPEndpoint),
		),
		api:  NewAPI(sessions, logger),
		auth: auth,
		mux:  http.NewServeMux(),
	}
	if config.RateLimit > 0 {
		t.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), max(config.RateBurst, 1))
	}

	t.setupRoutes()
	return t
}

// SetHealthChecker sets the health checker for the HTTP transport
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

// protected wraps handlers that require authentication and count against
// the rate limit.
func (t *HTTPTransport) protected(next http.Handler) http.Handler {
	h := t.authMiddleware(next)
	if t.rateLimiter != nil {
		h = t.rateLimiter.Middleware(h)
	}
	return t.httpsEnforcement(h)
}

// setupRoutes configures all HTTP routes
func (t *HTTPTransport) setupRoutes() {
	// Root endpoint for service discovery
	t.mux.Handle("GET /{$}", t.httpsEnforcement(http.HandlerFunc(t.handleServiceDiscovery)))

	// Health check endpoints (no auth required)
	t.mux.HandleFunc("GET /health", t.handleHealth)
	t.mux.HandleFunc("GET /ready", t.handleReady)
	t.mux.HandleFunc("GET /live", t.handleLive)

	t.api.Register(t.mux, t.protected)
	t.mux.Handle(t.config.MCPEndpoint, t.protected(t.mcpHTTP))
}

// Handler returns the routes wrapped in the middleware chain.
func (t *HTTPTransport) Handler() http.Handler {
	handler := http.Handler(t.mux)
	handler = TracingMiddleware()(handler) // Add tracing first to capture all requests
	handler = LoggingMiddleware(t.logger)(handler)
	handler = CORS(t.config.AllowedOrigins)(handler)
	handler = SecurityHeaders(handler)
	handler = RequestSizeLimiter(t.config.MaxRequestSize)(handler)
	return handler
}

// httpsEnforcement redirects HTTP requests to HTTPS if ForceHTTPS is enabled
func (t *HTTPTransport) httpsEnforcement(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.config.ForceHTTPS && r.TLS == nil {
			httpsURL := "https://" + r.Host + r.RequestURI

			t.logger.Info("redirecting HTTP request to HTTPS",
				"client_ip", r.RemoteAddr,
				"original_url", r.URL.String(),
				"redirect_url", httpsURL)

			http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware authenticates API and MCP requests
func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	if !t.auth.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := t.auth.Authenticate(r); err != nil {
			t.logger.Warn("authentication failed",
				"request_id", RequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
				"auth_type", t.auth.Scheme(),
				"error", err)
			monitoring.RecordError("http_transport", "auth_failed")

			w.Header().Set("WWW-Authenticate", t.auth.Challenge())
			t.writeJSON(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleServiceDiscovery lists the endpoints of this service
func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	baseURL := t.config.BaseURL
	if baseURL == "" {
		// Prefer HTTPS if TLS is configured or forced
		scheme := "http"
		if r.TLS != nil || t.config.ForceHTTPS || (t.config.TLSCertFile != "" && t.config.TLSKeyFile != "") {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	discovery := map[string]any{
		"service":   "osmxray",
		"transport": "Streamable HTTP",
		"endpoints": map[string]string{
			"mcp":      baseURL + t.config.MCPEndpoint,
			"sessions": baseURL + "/api/sessions",
			"hash":     baseURL + "/api/hash",
		},
		"capabilities": map[string]any{
			"tools":   true,
			"prompts": true,
		},
		"auth": map[string]any{
			"required": t.config.AuthType != "" && t.config.AuthType != "none",
		},
	}

	t.writeJSON(w, http.StatusOK, discovery)
}

func (t *HTTPTransport) checker() *monitoring.HealthChecker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.healthChecker
}

// handleHealth provides comprehensive health check endpoint
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if hc := t.checker(); hc != nil {
		hc.HealthHandler()(w, r)
		return
	}
	t.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReady provides Kubernetes-style readiness check
func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	if hc := t.checker(); hc != nil {
		hc.ReadinessHandler()(w, r)
		return
	}
	t.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "status": "ok"})
}

// handleLive provides Kubernetes-style liveness check
func (t *HTTPTransport) handleLive(w http.ResponseWriter, r *http.Request) {
	if hc := t.checker(); hc != nil {
		hc.LivenessHandler()(w, r)
		return
	}
	t.writeJSON(w, http.StatusOK, map[string]any{"alive": true})
}

func (t *HTTPTransport) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.logger.Error("failed to encode response", "error", err)
	}
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()

	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("The HTTP transport is already running. Stop it before starting again.")
	}

	t.httpSrv = &http.Server{
		Addr:           t.config.Addr,
		Handler:        t.Handler(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: t.config.MaxHeaderBytes,
		ConnState:      trackConnections("http"),
	}
	srv := t.httpSrv

	tls := t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"mcp_endpoint", t.config.MCPEndpoint,
		"auth_type", t.config.AuthType,
		"base_url", t.config.BaseURL,
		"rate_limit", t.config.RateLimit,
		"tls_enabled", tls,
		"force_https", t.config.ForceHTTPS)
	if t.config.ForceHTTPS && !tls {
		t.logger.Warn("HTTPS enforcement enabled but no TLS certificates provided - HTTP requests will be redirected")
	}
	t.mu.Unlock() // Release lock before blocking call

	if tls {
		return srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	}
	return srv.ListenAndServe()
}

// trackConnections reports open client connections to the active
// connections gauge.
func trackConnections(transport string) func(net.Conn, http.ConnState) {
	var open atomic.Int64
	return func(_ net.Conn, state http.ConnState) {
		switch state {
		case http.StateNew:
			open.Add(1)
		case http.StateHijacked, http.StateClosed:
			open.Add(-1)
		default:
			return
		}
		monitoring.UpdateActiveConnections(transport, "client", int(open.Load()))
	}
}

// Shutdown gracefully stops the HTTP transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
		t.rateLimiter = nil
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")

	if err := t.mcpHTTP.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown MCP endpoint", "error", err)
	}

	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
