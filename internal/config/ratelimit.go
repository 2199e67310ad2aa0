package config

import (
	"net/http"
	"time"
)

// RouteLimit is a per-route threshold evaluated after the global limiter.
// Path is the echo route pattern (e.g. /api/v1/quotes/:id).
type RouteLimit struct {
	Method   string
	Path     string
	Requests int
	Window   time.Duration
}

// RateLimitConfig configures the global request gate and the per-route
// table. Counters are keyed by Prefix, scope and client IP.
type RateLimitConfig struct {
	Enabled    bool
	Requests   int
	Window     time.Duration
	Prefix     string
	FailOpen   bool // allow requests when the counter store is unreachable
	TrustProxy bool // derive the client IP from X-Forwarded-For / X-Real-IP
	Routes     []RouteLimit
}

// DefaultRouteLimits are the thresholds for the quote and profile routes.
func DefaultRouteLimits() []RouteLimit {
	return []RouteLimit{
		{Method: http.MethodPost, Path: "/api/v1/quotes", Requests: 5, Window: time.Minute},
		{Method: http.MethodGet, Path: "/api/v1/quotes/:id", Requests: 5, Window: time.Minute},
		{Method: http.MethodPost, Path: "/api/v1/users/me", Requests: 10, Window: time.Minute},
	}
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:    envBool("RATE_LIMIT_ENABLED", true),
		Requests:   envInt("RATE_LIMIT_REQUESTS", 100),
		Window:     envDur("RATE_LIMIT_WINDOW", time.Minute),
		Prefix:     envStr("RATE_LIMIT_PREFIX", "rate_limit"),
		FailOpen:   envBool("RATE_LIMIT_FAIL_OPEN", false),
		TrustProxy: envBool("RATE_LIMIT_TRUST_PROXY", false),
		Routes:     DefaultRouteLimits(),
	}
	if def.Requests < 1 {
		def.Requests = 1
	}
	if def.Window < time.Second {
		def.Window = time.Second
	}
	return def
}
