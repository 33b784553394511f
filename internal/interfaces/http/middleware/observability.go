package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/taskflow/internal/infrastructure/monitoring"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/logger"
)

// RouteLabel returns a low-cardinality route name for metrics and spans.
func RouteLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	if name := c.GetString(constants.GinKeyRouteName); name != "" {
		return name
	}
	return "unmatched"
}

// ObservabilityMiddleware returns a Gin middleware that integrates request ids, access logging,
// Prometheus metrics and OpenTelemetry tracing.
// ObservabilityMiddleware 为每个请求分配请求 ID，启动追踪 Span，并记录访问日志与指标。
func ObservabilityMiddleware(tracer trace.Tracer, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Header(constants.HeaderRequestID, requestID)

		// Continue an upstream trace when the caller sent traceparent.
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx = context.WithValue(ctx, constants.ContextKeyRequestID, requestID)
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.Request.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		route := RouteLabel(c)
		duration := time.Since(start)
		metrics.RecordRequest(c.Request.Method, route, status, duration)

		span.SetName(c.Request.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.String("http.client_ip", c.ClientIP()),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.String("route", route),
			logger.Int("status", status),
			logger.Int64("latency_ms", duration.Milliseconds()),
			logger.String("client_ip", c.ClientIP()),
		}
		if id, ok := Identity(c); ok {
			fields = append(fields, logger.String("user_id", id.UserID))
		}
		switch {
		case status >= 500:
			var err error
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
			log.Error(c.Request.Context(), "Request failed", err, fields...)
		case status >= 400:
			log.Info(c.Request.Context(), "Request rejected", fields...)
		default:
			log.Debug(c.Request.Context(), "Request served", fields...)
		}
	}
}
