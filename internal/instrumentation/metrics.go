// Package instrumentation exposes the OpenTelemetry instruments recorded by
// the auth and rate-limit paths. Without an injected MeterProvider every
// instrument is a no-op.
package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/iliyamo/insurance-quoting"

// Metrics holds the metric instruments. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	RateLimitRejected metric.Int64Counter
	TokensIssued      metric.Int64Counter
	LoginFailed       metric.Int64Counter
	TokensRevoked     metric.Int64Counter
}

// New registers the instruments on provider (noop when nil).
func New(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := &Metrics{}
	var err error
	m.RateLimitRejected, err = meter.Int64Counter(
		"quoting.ratelimit.rejected",
		metric.WithDescription("Requests rejected by a rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.rejected counter: %w", err)
	}

	m.TokensIssued, err = meter.Int64Counter(
		"quoting.auth.tokens.issued",
		metric.WithDescription("Access and refresh tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.tokens.issued counter: %w", err)
	}

	m.LoginFailed, err = meter.Int64Counter(
		"quoting.auth.login.failed",
		metric.WithDescription("Failed login attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.login.failed counter: %w", err)
	}

	m.TokensRevoked, err = meter.Int64Counter(
		"quoting.auth.tokens.revoked",
		metric.WithDescription("Refresh tokens revoked by logout or rotation"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.tokens.revoked counter: %w", err)
	}
	return m, nil
}

// RecordRateLimitRejected records a rejection by the "global" or "route" limiter.
func (m *Metrics) RecordRateLimitRejected(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.RateLimitRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

// RecordTokenIssued records one issued token of kind "access" or "refresh".
func (m *Metrics) RecordTokenIssued(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordLoginFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.LoginFailed.Add(ctx, 1)
}

// RecordTokenRevoked records a revocation; reason is "logout" or "rotation".
func (m *Metrics) RecordTokenRevoked(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.TokensRevoked.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
