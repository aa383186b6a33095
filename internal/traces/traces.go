// Package traces wires OpenTelemetry tracing around the scoring paths.
package traces

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName     = "github.com/sentinel-labs/sentinelx"
	serviceName    = "sentinelx"
	serviceVersion = "0.1.0"
)

// Init installs the global tracer provider. With an empty endpoint the
// provider stays a no-op and spans cost nothing. The returned shutdown
// flushes pending spans; call it on server stop.
func Init(ctx context.Context, otlpEndpoint string, logger *slog.Logger) (func(context.Context) error, error) {
	if otlpEndpoint == "" {
		logger.Info("tracing disabled (no OTEL_EXPORTER_OTLP_ENDPOINT set)")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled", "endpoint", otlpEndpoint)
	return tp.Shutdown, nil
}

// StartSpan opens a span on the service tracer with optional attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// Span attribute helpers shared by the engines.

// Identity tags a span with the identity under evaluation.
func Identity(id string) attribute.KeyValue {
	return attribute.String("identity", id)
}

// EventKind tags a span with the scored event kind.
func EventKind(kind string) attribute.KeyValue {
	return attribute.String("event.kind", kind)
}

// RiskLevel tags a span with the resulting risk level.
func RiskLevel(level string) attribute.KeyValue {
	return attribute.String("risk.level", level)
}

// BatchRoot tags a span with a Merkle batch root.
func BatchRoot(root string) attribute.KeyValue {
	return attribute.String("batch.root", root)
}
