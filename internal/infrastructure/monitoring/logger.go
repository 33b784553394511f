package monitoring

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/logger"
)

// ZapLogger adapts zap to logger.Logger. Its level can be changed at runtime.
type ZapLogger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger builds the service logger writing to stdout.
func NewZapLogger(cfg *config.LogConfig) (*ZapLogger, error) {
	return NewZapLoggerTo(cfg, os.Stdout)
}

// NewZapLoggerTo builds a logger writing to w.
func NewZapLoggerTo(cfg *config.LogConfig, w io.Writer) (*ZapLogger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return &ZapLogger{
		base:  zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)),
		level: level,
	}, nil
}

// SetLevel changes the minimum level of this logger and every logger derived from it.
func (l *ZapLogger) SetLevel(level string) error {
	return l.level.UnmarshalText([]byte(level))
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}

func (l *ZapLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {
	l.base.Debug(msg, l.convertFields(ctx, fields)...)
}

func (l *ZapLogger) Info(ctx context.Context, msg string, fields ...logger.Field) {
	l.base.Info(msg, l.convertFields(ctx, fields)...)
}

func (l *ZapLogger) Warn(ctx context.Context, msg string, fields ...logger.Field) {
	l.base.Warn(msg, l.convertFields(ctx, fields)...)
}

func (l *ZapLogger) Error(ctx context.Context, msg string, err error, fields ...logger.Field) {
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	l.base.Error(msg, l.convertFields(ctx, fields)...)
}

func (l *ZapLogger) WithFields(fields ...logger.Field) logger.Logger {
	return &ZapLogger{base: l.base.With(l.convertFields(context.Background(), fields)...), level: l.level}
}

func (l *ZapLogger) WithComponent(component string) logger.Logger {
	return &ZapLogger{base: l.base.With(zap.String("component", component)), level: l.level}
}

func (l *ZapLogger) convertFields(ctx context.Context, fields []logger.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+3)
	if ctx != nil {
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
			zapFields = append(zapFields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}
		if requestID, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok {
			zapFields = append(zapFields, zap.String("request_id", requestID))
		}
	}

	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, logger.Sanitize(f.Key, f.Value)))
	}
	return zapFields
}
