package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/insurance-quoting/internal/config"
	"github.com/iliyamo/insurance-quoting/internal/instrumentation"
	"github.com/iliyamo/insurance-quoting/internal/ratelimit"
)

// TooManyRequestsDetail is the body detail of every 429 response.
const TooManyRequestsDetail = "Too many requests. Try again later."

// RateLimiter builds the global request gate and per-route limiters from
// one configuration. The client IP comes from c.RealIP(), so the echo
// IPExtractor decides whether proxy headers are trusted.
type RateLimiter struct {
	limiter *ratelimit.Limiter
	cfg     config.RateLimitConfig
	metrics *instrumentation.Metrics
	logger  *zap.Logger
}

func NewRateLimiter(l *ratelimit.Limiter, cfg config.RateLimitConfig, m *instrumentation.Metrics, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{limiter: l, cfg: cfg, metrics: m, logger: logger}
}

// Gate limits every request per client IP. Registered with e.Use it runs
// ahead of every route-level middleware, unknown paths included.
func (rl *RateLimiter) Gate() echo.MiddlewareFunc {
	if !rl.cfg.Enabled || rl.limiter == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rl.limiter.GlobalKey(c.RealIP())
			return rl.enforce(c, next, key, rl.cfg.Requests, rl.cfg.Window, "global")
		}
	}
}

// Route limits a single route per client IP. The counter is keyed by the
// registered pattern, so /quotes/:id is one budget for all ids.
func (rl *RateLimiter) Route(rule config.RouteLimit) echo.MiddlewareFunc {
	if !rl.cfg.Enabled || rl.limiter == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rl.limiter.RouteKey(c.RealIP(), c.Request().Method, c.Path())
			return rl.enforce(c, next, key, rule.Requests, rule.Window, "route")
		}
	}
}

// For returns the limiter of the first rule matching method and path, or a
// passthrough when no rule matches.
func (rl *RateLimiter) For(method, path string) echo.MiddlewareFunc {
	for _, r := range rl.cfg.Routes {
		if r.Method == method && r.Path == path {
			return rl.Route(r)
		}
	}
	return passthrough
}

func (rl *RateLimiter) enforce(c echo.Context, next echo.HandlerFunc, key string, limit int, window time.Duration, scope string) error {
	ctx := c.Request().Context()
	d, err := rl.limiter.CheckAndConsume(ctx, key, limit, window)
	if err != nil {
		if rl.cfg.FailOpen {
			rl.logger.Warn("rate limit store unavailable; allowing request",
				zap.String("scope", scope), zap.String("key", key), zap.Error(err))
			return next(c)
		}
		return err
	}

	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
		rl.metrics.RecordRateLimitRejected(ctx, scope)
		return c.JSON(http.StatusTooManyRequests, echo.Map{"detail": TooManyRequestsDetail})
	}
	return next(c)
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
