package instrumentation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Exporter is an SDK MeterProvider whose instruments are scraped through
// Handler in the Prometheus text format.
type Exporter struct {
	Provider *sdkmetric.MeterProvider
	Handler  http.Handler
}

// NewPrometheusExporter builds a provider backed by a private registry, so
// only this service's instruments are exposed.
func NewPrometheusExporter(serviceName string) (*Exporter, error) {
	reg := prometheus.NewRegistry()
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exp),
		sdkmetric.WithResource(res),
	)
	return &Exporter{
		Provider: provider,
		Handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// Shutdown flushes and stops the provider.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.Provider.Shutdown(ctx)
}
