// Package otelhelper wires OpenTelemetry tracing for the indexer.
package otelhelper

import (
	"context"
	"fmt"

	"github.com/dukex/dataindex/pkg/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Common attribute keys.
	ProcessIDKey      = "dataindex.process.id"
	ProcessVersionKey = "dataindex.process.version"
	NodeIDKey         = "dataindex.node.id"
	NodeCountKey      = "dataindex.node.count"
	EventIDKey        = "dataindex.event.id"
	EventTypeKey      = "dataindex.event.type"
)

// ShutdownFunc flushes and stops a tracer provider.
type ShutdownFunc func(ctx context.Context) error

// NewTracer installs a global OTLP/HTTP tracer provider for serviceName. The
// exporter endpoint comes from the standard OTEL_EXPORTER_OTLP_* variables.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, serviceName string) (trace.Tracer, ShutdownFunc, error) {
	provider, err := newTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}

	return provider.Tracer(serviceName), provider.Shutdown, nil
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// ProcessAttributes describes the process definition a span works on.
func ProcessAttributes(key models.ProcessDefinitionKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProcessIDKey, key.ID()),
		attribute.String(ProcessVersionKey, key.Version()),
	}
}

// NodeAttributes describes the node a span works on, process included.
func NodeAttributes(key models.NodeKey) []attribute.KeyValue {
	return append(ProcessAttributes(key.Process()), attribute.String(NodeIDKey, key.ID()))
}

func newTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}
