package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmxray/pkg/tracing"
)

// RetryOptions configures retry behavior for HTTP requests
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions are used by the backend clients.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// backoff returns the wait before attempt n (n >= 1 is the first retry).
func (o RetryOptions) backoff(n int) time.Duration {
	d := o.InitialDelay
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * o.Multiplier)
		if o.MaxDelay > 0 && d >= o.MaxDelay {
			return o.MaxDelay
		}
	}
	return d
}

// DefaultClient is shared by callers that do not bring their own client.
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// RequestFactory builds a fresh request for every attempt.
type RequestFactory func() (*http.Request, error)

// retryable reports whether another attempt can succeed after status.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryAfter reads a Retry-After header given in seconds. Zero means absent.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// WithRetryFactory performs the request built by factory until it answers
// 200, the attempts run out or ctx ends. Client errors other than 429 are
// returned without retrying. A Retry-After on a 429 or 503 stretches the
// next wait up to MaxDelay.
func WithRetryFactory(ctx context.Context, factory RequestFactory, client *http.Client, options RetryOptions) (*http.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "http.request_factory",
		trace.WithAttributes(attribute.Int("http.retry.max_attempts", options.MaxAttempts)),
	)
	defer span.End()

	if client == nil {
		client = DefaultClient
	}
	logger := slog.Default().With("component", "http_retry")

	var (
		lastErr error
		hint    time.Duration
	)
	for attempt := 1; attempt <= options.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := max(options.backoff(attempt-1), hint)
			if options.MaxDelay > 0 && wait > options.MaxDelay {
				wait = options.MaxDelay
			}
			tracing.AddEvent(ctx, "retry_attempt", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.Int64("delay_ms", wait.Milliseconds()),
			))
			logger.Info("retrying request", "attempt", attempt, "max_attempts", options.MaxAttempts, "delay", wait, "last_error", lastErr)

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				tracing.Fail(span, ctx.Err(), "request cancelled")
				return nil, NewError(ErrServiceTimeout, "request cancelled").
					WithGuidance("The upstream service did not answer in time")
			}
		}

		req, err := factory()
		if err != nil {
			tracing.Fail(span, err, "request creation failed")
			return nil, NewError(ErrInternalError, fmt.Sprintf("failed to create request: %v", err))
		}
		req = req.WithContext(ctx)

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("request failed", "error", err, "attempt", attempt, "url", req.URL.String())
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			span.SetAttributes(
				attribute.String(tracing.AttrHTTPMethod, req.Method),
				attribute.String("http.host", req.URL.Host),
				attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode),
				attribute.Int("http.retry.attempts", attempt),
			)
			span.SetStatus(codes.Ok, "")
			return resp, nil
		}

		hint = retryAfter(resp)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()

		lastErr = ServiceError(req.URL.Host, resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode))
		logger.Warn("request returned error status", "status", resp.StatusCode, "attempt", attempt, "url", req.URL.String())
		if !retryable(resp.StatusCode) {
			tracing.Fail(span, lastErr, "non-retryable status")
			return nil, lastErr
		}
	}

	tracing.Fail(span, lastErr, "max retries exceeded")

	var mcpErr *MCPError
	if errors.As(lastErr, &mcpErr) {
		return nil, mcpErr.WithGuidance("Maximum retry attempts reached. " + mcpErr.Guidance)
	}
	if ctx.Err() != nil {
		return nil, NewError(ErrServiceTimeout, "request cancelled").
			WithGuidance("The upstream service did not answer in time")
	}
	return nil, NewError(ErrNetworkError, "max retries reached").
		WithGuidance("The request failed after multiple attempts. Please try again later")
}
