// Package tracing configures OpenTelemetry tracing with an optional
// OTLP/HTTP exporter. When no endpoint is configured every span is a
// no-op.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "optbrief"

// Config is the `trace:` section of the configuration file.
type Config struct {
	// Endpoint is the OTLP/HTTP collector address (host:port).
	// Empty disables tracing.
	Endpoint string `yaml:"endpoint"`

	// Insecure uses plain HTTP instead of TLS.
	Insecure bool `yaml:"insecure,omitempty"`

	// ServiceName overrides the reported service.name.
	ServiceName string `yaml:"service_name,omitempty"`
}

// Provider owns the tracer provider lifecycle.
type Provider struct {
	tracer trace.Tracer
	tp     *sdktrace.TracerProvider // nil when disabled
}

// NewProvider builds a Provider from cfg. A nil cfg or empty endpoint
// yields a no-op provider; Tracer and Shutdown stay safe to call.
func NewProvider(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(tracerName)}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "optbrief"
	}
	res := sdkresource.NewSchemaless(
		attribute.String("service.name", name),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tracer: tp.Tracer(tracerName), tp: tp}, nil
}

// Tracer returns the tracer for run and step spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes pending spans. No-op when tracing is disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracing: shutdown: %w", err)
	}
	return nil
}
