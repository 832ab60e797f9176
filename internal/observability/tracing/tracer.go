// Package tracing provides OpenTelemetry tracing integration.
//
// Spans are created around outbound invocations and registry routing so a
// single tool call can be followed from the host through retries to the
// backend service.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the flux-tools application.
var tracer = otel.Tracer("flux-tools")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// StartInvocationSpan starts a client span for an outbound invocation,
// recording the HTTP method and target URL as attributes.
func StartInvocationSpan(ctx context.Context, method, target string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "invoke "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("url.full", target),
		),
	)
}

// StartToolSpan starts an internal span for a routed tool call, recording
// the provider and tool names as attributes.
func StartToolSpan(ctx context.Context, provider, tool string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tool "+tool,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tool.provider", provider),
			attribute.String("tool.name", tool),
		),
	)
}
