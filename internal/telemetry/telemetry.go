// Package telemetry configures OpenTelemetry tracing for model turns and
// tool executions.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/itsuki0/term-assistant"

// Config selects the exporter.
type Config struct {
	Enabled     bool
	Endpoint    string // host:port
	Insecure    bool
	ServiceName string
	Version     string
}

// Provider owns the tracer provider. The zero value traces nothing.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup installs a global tracer provider exporting over OTLP/HTTP. When
// tracing is disabled the global no-op provider is left in place.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return install(sdktrace.NewBatchSpanProcessor(exporter), cfg), nil
}

func install(processor sdktrace.SpanProcessor, cfg Config) *Provider {
	name := cfg.ServiceName
	if name == "" {
		name = "term-assistant"
	}
	res := resource.NewSchemaless(
		semconv.ServiceName(name),
		semconv.ServiceVersion(cfg.Version),
		attribute.String("telemetry.exporter", "otlphttp"),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)
	return &Provider{tp: tp}
}

// Tracer returns the application tracer from the global provider.
func (p *Provider) Tracer() trace.Tracer {
	if p != nil && p.tp != nil {
		return p.tp.Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
