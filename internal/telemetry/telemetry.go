// Package telemetry wires OpenTelemetry providers for the outbound CLI:
// Prometheus metrics served over HTTP and spans dumped to a writer.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Options selects which exporters Setup starts.
type Options struct {
	// ServiceName is recorded as the service.name resource attribute.
	ServiceName string
	// Metrics enables the Prometheus exporter and MetricsHandler.
	Metrics bool
	// TraceWriter receives finished spans as JSON. Nil disables tracing.
	TraceWriter io.Writer
}

// Telemetry holds the providers handed to httpclient.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// MetricsHandler serves the Prometheus exposition. Nil when metrics
	// are disabled.
	MetricsHandler http.Handler

	shutdown []func(context.Context) error
}

// Setup initializes the providers selected by opts. Disabled signals get
// no-op providers.
func Setup(ctx context.Context, opts Options) (*Telemetry, error) {
	t := &Telemetry{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", serviceName(opts.ServiceName))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// === TRACING SETUP ===
	if opts.TraceWriter != nil {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(opts.TraceWriter),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		t.TracerProvider = tp
		t.shutdown = append(t.shutdown, tp.Shutdown)
	}

	// === METRICS SETUP ===
	// A private registry keeps repeated Setup calls, as in tests, from
	// colliding in the global one.
	if opts.Metrics {
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		t.MeterProvider = mp
		t.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		t.shutdown = append(t.shutdown, mp.Shutdown)
	}

	return t, nil
}

// Shutdown flushes and stops every started provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func serviceName(name string) string {
	if name == "" {
		return "outbound"
	}
	return name
}
