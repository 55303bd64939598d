package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/monitoring"
)

const (
	// maxVisitors bounds the tracked client addresses.
	maxVisitors = 10000
	// visitorIdle is how long an address keeps its bucket without requests.
	visitorIdle = 3 * time.Minute
)

// RateLimiter gives every client IP its own token bucket. Buckets live in an
// LRU so that memory stays bounded however many addresses show up.
type RateLimiter struct {
	rate     rate.Limit
	burst    int
	mu       sync.Mutex
	visitors *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter allowing r requests per second with burst b
// per client.
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return newRateLimiter(r, b, maxVisitors)
}

func newRateLimiter(r rate.Limit, b, size int) *RateLimiter {
	return &RateLimiter{
		rate:     r,
		burst:    b,
		visitors: expirable.NewLRU[string, *rate.Limiter](size, nil, visitorIdle),
	}
}

// Stop forgets all clients.
func (rl *RateLimiter) Stop() {
	rl.visitors.Purge()
}

// limiter returns the bucket of ip, creating it on first sight. The lookup
// and insert happen under one lock so concurrent first requests share a
// bucket.
func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.visitors.Get(ip)
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
	}
	// Adding again resets the idle timer.
	rl.visitors.Add(ip, l)
	return l
}

// retryAfter is the whole number of seconds until one token is back.
func (rl *RateLimiter) retryAfter() int {
	if rl.rate <= 0 || rl.rate == rate.Inf {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(rl.rate))))
}

// Middleware rejects requests over the client's budget with 429 and a
// RATE_LIMIT error body.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limiter(clientIP(r)).Allow() {
			next.ServeHTTP(w, r)
			return
		}

		monitoring.RecordRateLimitExceeded("http")
		w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(core.NewError(core.ErrRateLimit, "too many requests").
			WithGuidance("Slow down pointer events or raise --rate-limit."))
	})
}
