// Package monitoring 提供日志、指标与分布式追踪的实现
// Package monitoring provides the zap logger, Prometheus metrics and OpenTelemetry tracing.
package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/pkg/logger"
)

// TracingManager 管理 OpenTelemetry 追踪
type TracingManager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	logger   logger.Logger
}

// NewTracingManager 创建追踪管理器
// When tracing is disabled the global no-op provider is used and spans cost nothing.
func NewTracingManager(cfg *config.TracingConfig, log logger.Logger) (*TracingManager, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		log.Info(context.Background(), "Tracing is disabled")
		return &TracingManager{
			tracer: otel.Tracer(cfg.ServiceName),
			logger: log,
		}, nil
	}

	// 创建 Jaeger exporter
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(cfg.JaegerEndpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)
	otel.SetTracerProvider(provider)

	log.Info(context.Background(), "Tracing initialized successfully",
		logger.String("endpoint", cfg.JaegerEndpoint),
		logger.Any("sample_rate", cfg.SamplingRate),
	)

	return &TracingManager{
		tracer:   provider.Tracer(cfg.ServiceName),
		provider: provider,
		logger:   log,
	}, nil
}

// Tracer returns the tracer spans should be started from.
func (tm *TracingManager) Tracer() trace.Tracer {
	return tm.tracer
}

// RecordError 记录错误到 Span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown 关闭追踪管理器
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}

	if err := tm.provider.Shutdown(ctx); err != nil {
		tm.logger.Error(ctx, "Failed to shutdown tracing provider", err)
		return err
	}

	tm.logger.Info(ctx, "Tracing provider shutdown successfully")
	return nil
}
