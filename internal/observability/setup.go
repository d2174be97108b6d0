package observability

import (
	"context"
	"errors"

	"appfeedback/internal/config"

	autosdk "go.opentelemetry.io/auto/sdk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// SetupObservability initializes tracing, metrics, and logging for a service.
// tp and mp are nil when the corresponding signal is disabled.
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName string, level string) (result0 trace.TracerProvider, result1 *metric.MeterProvider, result2 *Logger, err error) {
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}

	logger := NewLoggerWithLevel(cfg, ParseLevel(level))

	var tp trace.TracerProvider
	if cfg.EnableTracing {
		if cfg.UseAutoSDK {
			tp = autosdk.TracerProvider()
			logger.Info(context.Background(), "Tracing enabled with Auto SDK", map[string]interface{}{"service_name": cfg.ServiceName})
		} else {
			sdkTP, err := InitStandardTracing(cfg)
			if err != nil {
				return nil, nil, nil, err
			}
			tp = sdkTP
			logger.Info(context.Background(), "Tracing enabled with standard SDK", map[string]interface{}{"service_name": cfg.ServiceName})
		}
		otel.SetTracerProvider(tp)
		InitPropagation()
		InitGlobalTracer()
	}

	var mp *metric.MeterProvider
	if cfg.EnableMetrics {
		mp, err = InitMetrics(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		otel.SetMeterProvider(mp)
	}

	return tp, mp, logger, nil
}

// ShutdownObservability flushes and stops whichever providers were started.
func ShutdownObservability(ctx context.Context, tp trace.TracerProvider, mp *metric.MeterProvider, logger *Logger) error {
	var errs []error
	if s, ok := tp.(interface{ Shutdown(context.Context) error }); ok && s != nil {
		if err := s.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if logger != nil {
		// stdout sync fails on some terminals; never fatal
		_ = logger.Sync()
	}
	return errors.Join(errs...)
}
