// Package ratelimit implements a fixed-window request counter over a shared
// expiring store.
//
// For every key the first request in a window creates a counter with a TTL
// equal to the window; later requests increment it until it reaches the
// threshold, after which requests are rejected without incrementing. The
// counter disappears when its TTL elapses and the next request starts a new
// window. A client can therefore send up to 2×limit requests around a window
// boundary; that is an accepted property of fixed windows.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrStoreUnavailable wraps failures of the backing store.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Result is what a Store reports for one consume call.
type Result struct {
	Allowed bool
	Count   int64         // counter value after the call
	ResetIn time.Duration // time until the window expires
}

// Store performs the read/branch/increment sequence as one atomic step so
// concurrent requests cannot both observe an absent counter.
type Store interface {
	Consume(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Decision is the outcome of CheckAndConsume, shaped for rate-limit headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// Limiter evaluates keys against thresholds. It holds no per-key state of
// its own; all counters live in the Store.
type Limiter struct {
	store  Store
	prefix string
	logger *zap.Logger
}

// New returns a limiter whose keys are namespaced with prefix.
func New(store Store, prefix string, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "rate_limit"
	}
	return &Limiter{store: store, prefix: prefix, logger: logger}
}

// CheckAndConsume counts one request for key and reports whether it is
// within maxRequests for the current window. Store failures are returned
// wrapped in ErrStoreUnavailable.
func (l *Limiter) CheckAndConsume(ctx context.Context, key string, maxRequests int, window time.Duration) (Decision, error) {
	if maxRequests < 1 {
		maxRequests = 1
	}
	if window < time.Millisecond {
		window = time.Millisecond
	}
	res, err := l.store.Consume(ctx, key, maxRequests, window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	d := Decision{Allowed: res.Allowed, Limit: maxRequests}
	if remaining := int64(maxRequests) - res.Count; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !res.Allowed {
		d.RetryAfter = res.ResetIn
		l.logger.Info("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", res.Count),
			zap.Duration("retry_after", res.ResetIn))
	}
	return d, nil
}

// GlobalKey is the counter key of the process-wide per-IP limiter.
func (l *Limiter) GlobalKey(ip string) string {
	return strings.Join([]string{l.prefix, "global", normalizeIP(ip)}, ":")
}

// RouteKey is the counter key of a per-route limiter. The route is the
// registered pattern, so /quotes/:id shares one counter across ids.
func (l *Limiter) RouteKey(ip, method, route string) string {
	return strings.Join([]string{l.prefix, "route", normalizeIP(ip), method + " " + route}, ":")
}

func normalizeIP(ip string) string {
	if ip == "" {
		return "unknown"
	}
	return ip
}
