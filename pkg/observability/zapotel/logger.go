package zapotel

import (
	"context"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type zapLogger struct {
	zap *zap.Logger
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Debug(msg, toZapFields(ctx, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Info(msg, toZapFields(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Warn(msg, toZapFields(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Error(msg, toZapFields(ctx, fields)...)
}

func (l *zapLogger) With(fields ...observability.Field) observability.Logger {
	return &zapLogger{zap: l.zap.With(toZapFields(context.Background(), fields)...)}
}

// toZapFields converts fields and appends trace_id/span_id of the active span.
func toZapFields(ctx context.Context, fields []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, toZapField(f))
	}

	if ctx == nil {
		return out
	}

	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		out = append(out,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	return out
}

func toZapField(f observability.Field) zap.Field {
	switch v := f.Value.(type) {
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case float64:
		return zap.Float64(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case error:
		if v == nil {
			return zap.Skip()
		}
		return zap.NamedError(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}
