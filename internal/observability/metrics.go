package observability

import (
	"context"

	"appfeedback/internal/config"
	contextutils "appfeedback/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
		exporter = exp
	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", cfg.Protocol)
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	)
	return mp, nil
}

// ReportMetrics holds the counters emitted by the report engine. A nil
// *ReportMetrics is valid and records nothing.
type ReportMetrics struct {
	ingested              otelmetric.Int64Counter
	scrubbed              otelmetric.Int64Counter
	reassigned            otelmetric.Int64Counter
	statsTxRetries        otelmetric.Int64Counter
	consistencyViolations otelmetric.Int64Counter
}

// NewReportMetrics registers the report counters on the given meter provider,
// or on the global one when mp is nil.
func NewReportMetrics(mp otelmetric.MeterProvider) *ReportMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(tracerName)
	fallback := noop.NewMeterProvider().Meter(tracerName)

	counter := func(name, description string) otelmetric.Int64Counter {
		c, err := meter.Int64Counter(name, otelmetric.WithDescription(description))
		if err != nil {
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	return &ReportMetrics{
		ingested:              counter("reports.ingested", "Reports accepted by ingestion"),
		scrubbed:              counter("reports.scrubbed", "Reports whose user-entered fields were redacted"),
		reassigned:            counter("reports.reassigned", "Reports moved between tickets"),
		statsTxRetries:        counter("stats.tx_retries", "Daily stats transactions retried after a conflict"),
		consistencyViolations: counter("stats.consistency_violations", "Stats updates rejected as inconsistent"),
	}
}

// RecordIngested counts one accepted report.
func (m *ReportMetrics) RecordIngested(ctx context.Context, platform string) {
	if m == nil {
		return
	}
	m.ingested.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("platform", platform)))
}

// RecordScrubbed counts one scrubbed report.
func (m *ReportMetrics) RecordScrubbed(ctx context.Context, actorID string) {
	if m == nil {
		return
	}
	m.scrubbed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("actor", actorID)))
}

// RecordReassigned counts one completed reassignment.
func (m *ReportMetrics) RecordReassigned(ctx context.Context) {
	if m == nil {
		return
	}
	m.reassigned.Add(ctx, 1)
}

// RecordStatsTxRetry counts one retried stats transaction.
func (m *ReportMetrics) RecordStatsTxRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.statsTxRetries.Add(ctx, 1)
}

// RecordConsistencyViolation counts one rejected stats update.
func (m *ReportMetrics) RecordConsistencyViolation(ctx context.Context) {
	if m == nil {
		return
	}
	m.consistencyViolations.Add(ctx, 1)
}
