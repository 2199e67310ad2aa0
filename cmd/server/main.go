package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/iliyamo/insurance-quoting/internal/config"
	"github.com/iliyamo/insurance-quoting/internal/database"
	"github.com/iliyamo/insurance-quoting/internal/instrumentation"
	"github.com/iliyamo/insurance-quoting/internal/queue"
	"github.com/iliyamo/insurance-quoting/internal/ratelimit"
	"github.com/iliyamo/insurance-quoting/internal/repository"
	"github.com/iliyamo/insurance-quoting/internal/router"
	"github.com/iliyamo/insurance-quoting/internal/security"
	"github.com/iliyamo/insurance-quoting/internal/service"
)

func main() {
	// a missing .env is fine; the environment may be set by the container
	_ = godotenv.Load()

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()
	queueCfg := config.LoadQueueConfig()

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// counters stay no-op unless METRICS_ENABLED exposes them on /metrics
	var (
		meterProvider  metric.MeterProvider
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		exp, err := instrumentation.NewPrometheusExporter("insurance-quoting")
		if err != nil {
			logger.Fatal("failed to create metrics exporter", zap.Error(err))
		}
		defer func() { _ = exp.Shutdown(context.WithoutCancel(ctx)) }()
		meterProvider, metricsHandler = exp.Provider, exp.Handler
	}
	metrics, err := instrumentation.New(meterProvider)
	if err != nil {
		logger.Fatal("failed to create metrics", zap.Error(err))
	}

	tokens, err := security.NewTokenService(security.TokenOptions{
		Secret:     cfg.JWTSecret,
		Algorithm:  cfg.JWTAlgorithm,
		AccessTTL:  time.Duration(cfg.AccessTTLMin) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
	}, logger.Named("tokens"))
	if err != nil {
		logger.Fatal("invalid token configuration", zap.Error(err))
	}

	// Redis backs the limiter, revocations and the response cache. Without it
	// the limiter falls back to process-local counters, logout is refused and
	// nothing is cached.
	var (
		store       ratelimit.Store
		revocations service.RevocationStore
		cacheClient redis.Cmdable
	)
	rdb, err := config.NewRedisClient()
	if err != nil {
		logger.Warn("redis unavailable; using in-process rate limit counters", zap.Error(err))
		_ = rdb.Close()
		store = ratelimit.NewMemoryStore(0)
	} else {
		defer rdb.Close()
		store = ratelimit.NewRedisStore(rdb)
		revocations = repository.NewRevocationRepo(rdb, "revoked")
		cacheClient = rdb
	}
	limiter := ratelimit.New(store, rlCfg.Prefix, logger.Named("ratelimit"))

	var publisher service.EventPublisher
	if queueCfg.Enabled {
		publisher = queue.NewPublisher(queueCfg, logger.Named("publisher"))
		go func() {
			if err := queue.StartApplicationConsumer(ctx, queueCfg, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("application consumer stopped", zap.Error(err))
			}
		}()
	}

	users := repository.NewUserRepo(db)
	quotes := repository.NewQuoteRepo(db)

	auth := service.NewAuthService(service.AuthDeps{
		Users:         users,
		Hasher:        security.NewPasswordHasher(cfg.BcryptCost),
		Tokens:        tokens,
		Revocations:   revocations,
		RotateRefresh: cfg.RefreshRotation,
		Metrics:       metrics,
		Logger:        logger.Named("auth"),
	})

	e := router.New(router.Deps{
		Config:         cfg,
		RateLimit:      rlCfg,
		Cache:          cacheCfg,
		Limiter:        limiter,
		Redis:          cacheClient,
		Auth:           auth,
		Quotes:         service.NewQuoteService(quotes, cfg.QuoteBasePrice, logger.Named("quotes")),
		Applications:   service.NewApplicationService(repository.NewApplicationRepo(db), quotes, publisher, logger.Named("applications")),
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		Logger:         logger,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Debug() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
