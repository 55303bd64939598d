// Package josm talks to the remote control interface of a locally running
// JOSM editor.
package josm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/tracing"
)

// DefaultBaseURL is where JOSM listens for remote control commands.
const DefaultBaseURL = "http://localhost:8111"

// Notice is shown to the user when JOSM could not be reached.
const Notice = "Problem contacting JOSM. Is it running? Is remote control activated?"

// Config holds the JOSM client settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// DefaultConfig returns the default JOSM client settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   5 * time.Second,
		RateLimit: 1,
		Burst:     2,
	}
}

// Client sends load_and_zoom commands.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a client and registers the JOSM rate limit.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if err := osm.RegisterService(tracing.ServiceJOSM, cfg.BaseURL, cfg.RateLimit, cfg.Burst); err != nil {
		return nil, fmt.Errorf("josm: %w", err)
	}
	return &Client{
		cfg:    cfg,
		http:   osm.NewClient(cfg.Timeout),
		logger: logger.With("component", "josm"),
	}, nil
}

// LoadAndZoomURL returns the remote control URL that loads the data inside b.
func LoadAndZoomURL(baseURL string, b orb.Bound) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return strings.TrimSuffix(baseURL, "/") + "/load_and_zoom" +
		"?left=" + f(b.Left()) +
		"&right=" + f(b.Right()) +
		"&top=" + f(b.Top()) +
		"&bottom=" + f(b.Bottom())
}

// URL returns the load_and_zoom URL for b on this client's JOSM.
func (c *Client) URL(b orb.Bound) string {
	return LoadAndZoomURL(c.cfg.BaseURL, b)
}

// LoadAndZoom asks JOSM to load and show the area b. JOSM must answer 200
// with a body starting with "OK". Every failure is returned as an
// *core.MCPError whose guidance is Notice.
func (c *Client) LoadAndZoom(ctx context.Context, b orb.Bound) error {
	target := c.URL(b)

	ctx, span := tracing.StartSpan(ctx, "josm.load_and_zoom",
		trace.WithAttributes(
			attribute.String(tracing.AttrServiceName, tracing.ServiceJOSM),
			attribute.String(tracing.AttrServiceURL, target),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	err := c.do(ctx, target)
	if err != nil {
		tracing.Fail(span, err, "josm unavailable")
		c.logger.Warn("JOSM remote control failed", "url", target, "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	c.logger.Debug("JOSM loaded area", "url", target)
	return nil
}

func (c *Client) do(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return unavailable(fmt.Sprintf("invalid JOSM URL: %v", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return core.NewError(core.ErrServiceTimeout, "JOSM did not answer in time").WithGuidance(Notice)
		}
		return unavailable(fmt.Sprintf("contacting JOSM: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return unavailable(fmt.Sprintf("reading JOSM response: %v", err))
	}
	tracing.SetAttributes(ctx, attribute.Int(tracing.AttrServiceStatus, resp.StatusCode))

	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "OK") {
		return unavailable(fmt.Sprintf("JOSM answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return nil
}

func unavailable(msg string) *core.MCPError {
	return core.NewError(core.ErrServiceUnavailable, msg).WithGuidance(Notice)
}
