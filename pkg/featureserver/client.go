// Package featureserver loads single OSM objects as GeoJSON from a
// pg_featureserv instance. It is used to restore a selection pinned in
// the URL hash, where only the kind and id survive.
package featureserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/NERVsystems/osmxray/pkg/collect"
	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/monitoring"
	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/settings"
	"github.com/NERVsystems/osmxray/pkg/tracing"
)

// maxResponseSize bounds the GeoJSON body of one object.
const maxResponseSize = 16 << 20

// Config holds the feature server client settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
	RateLimit float64
	Burst     int
	Retry     core.RetryOptions
}

// DefaultConfig returns the settings for the public test server.
func DefaultConfig() Config {
	return Config{
		BaseURL:   settings.DefaultConfig().FeatureServer,
		Timeout:   10 * time.Second,
		CacheSize: 1000,
		CacheTTL:  10 * time.Minute,
		RateLimit: 5,
		Burst:     10,
		Retry:     core.DefaultRetryOptions,
	}
}

// Client fetches objects by reference.
type Client struct {
	cfg    Config
	http   *http.Client
	group  singleflight.Group
	cache  *expirable.LRU[osm.Ref, osm.GeoObject]
	logger *slog.Logger
}

// New creates a client and registers the feature server rate limit.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := osm.RegisterService(tracing.ServiceFeatureServer, cfg.BaseURL, cfg.RateLimit, cfg.Burst); err != nil {
		return nil, fmt.Errorf("featureserver: %w", err)
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 1
	}
	return &Client{
		cfg:    cfg,
		http:   osm.NewClient(cfg.Timeout),
		cache:  expirable.NewLRU[osm.Ref, osm.GeoObject](cfg.CacheSize, nil, cfg.CacheTTL),
		logger: logger.With("component", "featureserver"),
	}, nil
}

// URL returns the items URL for ref.
func (c *Client) URL(ref osm.Ref) string {
	return settings.ObjectURL(c.cfg.BaseURL, ref)
}

// Fetch returns the object ref with its attributes and bounding box.
// Concurrent calls for the same object share one request. An object the
// server does not know yields a NO_RESULTS error.
func (c *Client) Fetch(ctx context.Context, ref osm.Ref) (osm.GeoObject, error) {
	if !ref.Kind.Valid() {
		return osm.GeoObject{}, core.NewValidationError(core.ErrInvalidParameter, fmt.Sprintf("invalid object kind %d", ref.Kind))
	}

	if obj, ok := c.cache.Get(ref); ok {
		monitoring.RecordCacheHit(tracing.CacheTypeObject)
		tracing.SetAttributes(ctx, tracing.CacheAttributes(tracing.CacheTypeObject, true, ref.String())...)
		return obj, nil
	}
	monitoring.RecordCacheMiss(tracing.CacheTypeObject)

	// The shared request must outlive the caller that started it, so it runs
	// detached from cancellation and bounded by the client's own deadline.
	ch := c.group.DoChan(ref.String(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout())
		defer cancel()
		obj, err := c.fetch(fctx, ref)
		if err != nil {
			return nil, err
		}
		c.cache.Add(ref, obj)
		monitoring.UpdateCacheSize(tracing.CacheTypeObject, c.cache.Len())
		return obj, nil
	})

	select {
	case <-ctx.Done():
		return osm.GeoObject{}, core.NewError(core.ErrServiceTimeout, fmt.Sprintf("fetch of %s cancelled", ref)).
			WithGuidance("The request ended before the feature server answered")
	case res := <-ch:
		if res.Err != nil {
			return osm.GeoObject{}, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared in-flight fetch", "object", ref.String())
		}
		return res.Val.(osm.GeoObject), nil
	}
}

// fetchTimeout bounds one shared fetch including its retries.
func (c *Client) fetchTimeout() time.Duration {
	attempts := max(c.cfg.Retry.MaxAttempts, 1)
	return time.Duration(attempts)*c.cfg.Timeout + time.Duration(attempts-1)*c.cfg.Retry.MaxDelay
}

func (c *Client) fetch(ctx context.Context, ref osm.Ref) (osm.GeoObject, error) {
	target := c.URL(ref)
	ctx, span := tracing.StartSpan(ctx, "featureserver.fetch",
		trace.WithAttributes(
			attribute.String(tracing.AttrServiceName, tracing.ServiceFeatureServer),
			attribute.String(tracing.AttrServiceURL, target),
			attribute.String(tracing.AttrObjectRef, ref.String()),
		),
	)
	defer span.End()

	resp, err := core.WithRetryFactory(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/geo+json, application/json")
		return req, nil
	}, c.http, c.cfg.Retry)
	if err != nil {
		tracing.Fail(span, err, "request failed")
		c.logger.Warn("feature server request failed", "object", ref.String(), "error", err)
		return osm.GeoObject{}, err
	}
	defer resp.Body.Close()
	span.SetAttributes(tracing.ServiceAttributes(tracing.ServiceFeatureServer, "items", target, resp.StatusCode)...)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		tracing.Fail(span, err, "read failed")
		return osm.GeoObject{}, core.NewError(core.ErrNetworkError, fmt.Sprintf("reading feature server response: %v", err))
	}

	objs, err := collect.ParseGeoJSON(ref.Kind, data)
	if err != nil {
		tracing.Fail(span, err, "parse failed")
		return osm.GeoObject{}, core.NewError(core.ErrParseError, err.Error()).
			WithGuidance("The feature server returned something other than a GeoJSON FeatureCollection")
	}

	for _, obj := range objs {
		if obj.ID == ref.ID {
			span.SetStatus(codes.Ok, "")
			return obj, nil
		}
	}

	tracing.Fail(span, nil, "not found")
	return osm.GeoObject{}, core.NewError(core.ErrNoResults, fmt.Sprintf("object %s not found", ref)).
		WithQuery(ref.String()).
		WithGuidance("The object may have been deleted or is not part of the imported data")
}

// Check reports whether the feature server answers.
func (c *Client) Check(ctx context.Context) error {
	return osm.CheckServiceHealth(ctx, c.http, tracing.ServiceFeatureServer)
}
