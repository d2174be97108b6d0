package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "appfeedback"

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(tracerName)
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		globalTracer = otel.Tracer(tracerName)
	}
	return globalTracer
}

// TraceFunction starts a new span named "<component>.<function>".
func TraceFunction(ctx context.Context, component, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetGlobalTracer().Start(ctx, fmt.Sprintf("%s.%s", component, functionName), trace.WithAttributes(attributes...))
}

// TraceReportFunction starts a new span for report ingestion and lookups.
func TraceReportFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "report", functionName, attributes...)
}

// TraceStatsFunction starts a new span for the aggregation engine.
func TraceStatsFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "stats", functionName, attributes...)
}

// TraceTicketFunction starts a new span for ticket lifecycle operations.
func TraceTicketFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "ticket", functionName, attributes...)
}

// TraceScrubFunction starts a new span for retention and scrubbing.
func TraceScrubFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "scrub", functionName, attributes...)
}

// TraceConversionFunction starts a new span for payload and storage conversion.
func TraceConversionFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "conversion", functionName, attributes...)
}

// TraceWorkerFunction starts a new span for the background sweeper.
func TraceWorkerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "worker", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeReportID returns a tracing attribute for a report id.
func AttributeReportID(id string) attribute.KeyValue {
	return attribute.String("report.id", id)
}

// AttributeTicketID returns a tracing attribute for a ticket id.
func AttributeTicketID(id string) attribute.KeyValue {
	return attribute.String("ticket.id", id)
}

// AttributeStatsID returns a tracing attribute for a daily stats row id.
func AttributeStatsID(id string) attribute.KeyValue {
	return attribute.String("stats.id", id)
}

// AttributePlatform returns a tracing attribute for a report platform.
func AttributePlatform(platform string) attribute.KeyValue {
	return attribute.String("report.platform", platform)
}

// AttributeActor returns a tracing attribute for the moderator or bot acting on a report.
func AttributeActor(actorID string) attribute.KeyValue {
	return attribute.String("actor.id", actorID)
}

// AttributeDelta returns a tracing attribute for a stats delta.
func AttributeDelta(delta int) attribute.KeyValue {
	return attribute.Int("stats.delta", delta)
}

// AttributeCount returns a tracing attribute for a number of affected items.
func AttributeCount(n int) attribute.KeyValue {
	return attribute.Int("count", n)
}
