package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmxray/pkg/featureserver"
	"github.com/NERVsystems/osmxray/pkg/josm"
	"github.com/NERVsystems/osmxray/pkg/monitoring"
	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/server"
	"github.com/NERVsystems/osmxray/pkg/session"
	"github.com/NERVsystems/osmxray/pkg/settings"
	"github.com/NERVsystems/osmxray/pkg/tools"
	"github.com/NERVsystems/osmxray/pkg/tracing"
	ver "github.com/NERVsystems/osmxray/pkg/version"
)

const shutdownTimeout = 30 * time.Second

var (
	showVersionFlag bool
	debug           bool
	logFormat       string
	userAgent       string
	envFile         string

	// HTTP transport flags
	httpAddr       string
	httpBaseURL    string
	httpAuthType   string
	httpAuthToken  string
	rateLimit      float64
	rateBurst      int
	allowedOrigins string
	tlsCertFile    string
	tlsKeyFile     string
	enableStdio    bool

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string

	// Backends
	tilePrefix       string
	featureServerURL string
	featureRPS       float64
	featureBurst     int
	josmURL          string

	// Sessions
	sessionTTL  time.Duration
	maxSessions int
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	flag.StringVar(&userAgent, "user-agent", osm.DefaultUserAgent, "User-Agent string for outgoing requests")
	flag.StringVar(&envFile, "env-file", ".env", "File with environment variables such as OTLP_ENDPOINT (ignored if missing)")

	httpDefaults := server.DefaultHTTPTransportConfig()
	flag.StringVar(&httpAddr, "http-addr", httpDefaults.Addr, "HTTP server address")
	flag.StringVar(&httpBaseURL, "http-base-url", "", "Base URL for service discovery (auto-detected if empty)")
	flag.StringVar(&httpAuthType, "http-auth-type", httpDefaults.AuthType, "HTTP authentication type: none, bearer, basic")
	flag.StringVar(&httpAuthToken, "http-auth-token", "", "HTTP authentication token")
	flag.Float64Var(&rateLimit, "rate-limit", httpDefaults.RateLimit, "Requests per second per client IP (0 disables)")
	flag.IntVar(&rateBurst, "rate-burst", httpDefaults.RateBurst, "Rate limit burst size per client IP")
	flag.StringVar(&allowedOrigins, "allowed-origins", "", "Comma separated origins allowed to call the API from a browser, or *")
	flag.StringVar(&tlsCertFile, "tls-cert", "", "TLS certificate file")
	flag.StringVar(&tlsKeyFile, "tls-key", "", "TLS private key file")
	flag.BoolVar(&enableStdio, "enable-stdio", false, "Also serve MCP over stdin/stdout")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and backend health checks")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")

	settingsDefaults := settings.DefaultConfig()
	fsDefaults := featureserver.DefaultConfig()
	flag.StringVar(&tilePrefix, "tile-prefix", settingsDefaults.TilePrefix, "Vector tile server prefix")
	flag.StringVar(&featureServerURL, "feature-server", settingsDefaults.FeatureServer, "OGC API feature server base URL")
	flag.Float64Var(&featureRPS, "feature-rps", fsDefaults.RateLimit, "Feature server rate limit in requests per second")
	flag.IntVar(&featureBurst, "feature-burst", fsDefaults.Burst, "Feature server rate limit burst size")
	flag.StringVar(&josmURL, "josm-url", josm.DefaultBaseURL, "JOSM remote control base URL")

	sessionDefaults := session.DefaultManagerConfig()
	flag.DurationVar(&sessionTTL, "session-ttl", sessionDefaults.TTL, "Idle time after which a viewer session expires")
	flag.IntVar(&maxSessions, "max-sessions", sessionDefaults.MaxSessions, "Maximum number of live viewer sessions")
}

func main() {
	flag.Parse()

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	logger := newLogger(debug, logFormat)
	slog.SetDefault(logger)

	// Variables already set in the environment win over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load env file", "file", envFile, "error", err)
	}

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newLogger builds the process logger. Logs go to stderr so stdio MCP keeps
// stdout to itself.
func newLogger(debug bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// splitOrigins parses the --allowed-origins value.
func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, strings.TrimSuffix(o, "/"))
		}
	}
	return out
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		// Tracing is optional.
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	if userAgent != osm.DefaultUserAgent {
		osm.SetUserAgent(userAgent)
	}

	if enableMonitoring {
		osm.SetMonitoringHooks(&osm.MonitoringHooks{
			OnRequest: func(service, operation string) {},
			OnResponse: func(service, operation string, duration time.Duration, success bool) {
				monitoring.RecordExternalServiceRequest(service, operation, duration, success)
			},
			OnRateLimit: func(service string, waitTime time.Duration) {
				monitoring.RecordRateLimitWait(service, waitTime)
				monitoring.RecordRateLimitExceeded(service)
			},
			OnError: func(service, errorType string) {
				monitoring.RecordError(service, errorType)
			},
		})
	}

	settingsCfg := settings.Config{TilePrefix: tilePrefix, FeatureServer: featureServerURL}

	fsCfg := featureserver.DefaultConfig()
	fsCfg.BaseURL = featureServerURL
	fsCfg.RateLimit = featureRPS
	fsCfg.Burst = featureBurst
	features, err := featureserver.New(fsCfg, logger)
	if err != nil {
		return err
	}

	josmCfg := josm.DefaultConfig()
	josmCfg.BaseURL = josmURL
	editor, err := josm.New(josmCfg, logger)
	if err != nil {
		return err
	}

	sessions := session.NewManager(
		session.ManagerConfig{TTL: sessionTTL, MaxSessions: maxSessions},
		session.Deps{
			Settings:  settingsCfg,
			Objects:   features,
			Editor:    editor,
			EditorURL: josmCfg.BaseURL,
			Logger:    logger,
		},
	)
	defer sessions.Purge()

	registry := tools.NewRegistry(logger, sessions, features)
	s := server.NewServer(registry, logger)

	httpCfg := server.DefaultHTTPTransportConfig()
	httpCfg.Addr = httpAddr
	httpCfg.BaseURL = httpBaseURL
	httpCfg.AuthType = httpAuthType
	httpCfg.AuthToken = httpAuthToken
	httpCfg.RateLimit = rateLimit
	httpCfg.RateBurst = rateBurst
	httpCfg.AllowedOrigins = splitOrigins(allowedOrigins)
	httpCfg.TLSCertFile = tlsCertFile
	httpCfg.TLSKeyFile = tlsKeyFile
	transport := server.NewHTTPTransport(s.GetMCPServer(), sessions, httpCfg, logger)

	transportType := "http"
	if enableStdio {
		transportType = "http+stdio"
	}

	if enableMonitoring {
		hc := monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer hc.Shutdown()
		hc.SetTransport(monitoring.TransportInfo{Type: transportType, HTTPAddr: httpAddr})
		hc.SetSessionCounter(sessions.Len)
		transport.SetHealthChecker(hc)

		monitorCfg := monitoring.DefaultMonitorConfig()
		monitorCfg.Timeout = fsCfg.Timeout
		monitor := monitoring.NewConnectionMonitor(tracing.ServiceFeatureServer, hc, features.Check, monitorCfg)
		monitor.Start()
		defer monitor.Stop()
	}

	logger.Info("starting osmxray",
		"version", ver.BuildVersion,
		"transports", transportType,
		"http_addr", httpAddr,
		"feature_server", featureServerURL,
		"tile_prefix", tilePrefix,
		"josm_url", josmCfg.BaseURL,
		"session_ttl", sessionTTL,
		"max_sessions", maxSessions,
		"monitoring_enabled", enableMonitoring)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := transport.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http transport: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return transport.Shutdown(shutdownCtx)
	})

	if enableMonitoring {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{
			Addr:              monitoringAddr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting Prometheus metrics server", "addr", monitoringAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("monitoring server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if enableStdio {
		g.Go(func() error {
			logger.Info("transport_enabled", "type", "stdio")
			// Closing stdin ends the stdio transport but not the process.
			return s.ServeStdio(gctx, os.Stdin, os.Stdout)
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		logger.Info("shutdown signal received")
	}
	return err
}
