// Package telemetry installs the global OpenTelemetry tracer provider. Without
// an OTLP endpoint spans are recorded in-process and dropped.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	ServiceName  string
	OTLPEndpoint string
	Headers      map[string]string
}

type Telemetry struct {
	TracerProvider *trace.TracerProvider
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil {
		return nil
	}
	return t.TracerProvider.Shutdown(ctx)
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

// Setup builds a tracer provider for cfg and makes it the global one.
func Setup(ctx context.Context, cfg Config) (Telemetry, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "gpu-hunter"
	}

	r, err := newResource(cfg.ServiceName)
	if err != nil {
		return Telemetry{}, fmt.Errorf("telemetry: resource: %w", err)
	}

	opts := []trace.TracerProviderOption{trace.WithResource(r)}
	if cfg.OTLPEndpoint != "" {
		exporter, err := newExporter(ctx, cfg)
		if err != nil {
			return Telemetry{}, fmt.Errorf("telemetry: exporter: %w", err)
		}
		opts = append(opts, trace.WithBatcher(exporter))
		log.Printf("[TELEMETRY] exporting traces to %s", cfg.OTLPEndpoint)
	}

	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return Telemetry{TracerProvider: tp}, nil
}

func newExporter(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint)}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}
