// Package router assembles the echo instance: global middleware, the rate
// limit table and every API route.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/insurance-quoting/internal/config"
	"github.com/iliyamo/insurance-quoting/internal/handler"
	"github.com/iliyamo/insurance-quoting/internal/instrumentation"
	"github.com/iliyamo/insurance-quoting/internal/middleware"
	"github.com/iliyamo/insurance-quoting/internal/ratelimit"
	"github.com/iliyamo/insurance-quoting/internal/service"
)

// APIPrefix is the prefix of every versioned route.
const APIPrefix = "/api/v1"

// Deps are the collaborators the routes need. Redis may be nil, in which
// case the response cache is disabled. MetricsHandler, when set, is served
// on /metrics.
type Deps struct {
	Config         config.Config
	RateLimit      config.RateLimitConfig
	Cache          config.CacheConfig
	Limiter        *ratelimit.Limiter
	Redis          redis.Cmdable
	Auth           *service.AuthService
	Quotes         *service.QuoteService
	Applications   *service.ApplicationService
	Metrics        *instrumentation.Metrics
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// New returns a fully wired echo instance.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.NewHTTPErrorHandler(d.Config.Debug(), d.Logger)
	e.Validator = handler.NewValidator(d.Config.PasswordMinLength, d.Config.PasswordMaxLength)
	if d.RateLimit.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	rl := middleware.NewRateLimiter(d.Limiter, d.RateLimit, d.Metrics, d.Logger)

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echomw.Recover())
	if len(d.Config.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: d.Config.CORSOrigins}))
	}
	e.Use(rl.Gate())

	RegisterRoutes(e, d.MetricsHandler)
	bearer := middleware.BearerAuth(d.Auth, d.Logger)
	RegisterAuth(e, handler.NewAuthHandler(d.Auth), bearer, rl)
	RegisterQuotes(e, handler.NewQuoteHandler(d.Quotes), rl, middleware.NewResponseCache(d.Cache, d.Redis, d.Logger))
	RegisterApplications(e, handler.NewApplicationHandler(d.Applications), bearer)
	return e
}

// RegisterRoutes registers routes that do not require authentication and
// sit outside the versioned API.
func RegisterRoutes(e *echo.Echo, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers /auth and /users. The per-route limiter runs
// before bearer authentication so rejected clients never reach the store.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, bearer echo.MiddlewareFunc, rl *middleware.RateLimiter) {
	g := e.Group(APIPrefix + "/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh-token", a.Refresh)
	g.POST("/logout", a.Logout)

	u := e.Group(APIPrefix + "/users")
	u.POST("/me", handler.Me, rl.For(http.MethodPost, APIPrefix+"/users/me"), bearer)
}

// RegisterQuotes registers the public quote routes; lookups are cached.
func RegisterQuotes(e *echo.Echo, q *handler.QuoteHandler, rl *middleware.RateLimiter, cache echo.MiddlewareFunc) {
	g := e.Group(APIPrefix + "/quotes")
	g.POST("", q.Create, rl.For(http.MethodPost, APIPrefix+"/quotes"))
	g.GET("/:id", q.Get, rl.For(http.MethodGet, APIPrefix+"/quotes/:id"), cache)
}

// RegisterApplications registers the owner-scoped application routes.
func RegisterApplications(e *echo.Echo, h *handler.ApplicationHandler, bearer echo.MiddlewareFunc) {
	g := e.Group(APIPrefix+"/applications", bearer)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
}
