package zapotel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestProvider(t *testing.T) (*Provider, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	cfg := DefaultConfig("observable-service-test")

	provider, err := NewProviderWithCore(context.Background(), cfg, core)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	return provider, logs
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig("svc")
	assert.NoError(t, cfg.Validate())

	cfg.ServiceName = "  "
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig("svc")
	cfg.TraceSampleRate = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig("svc")
	cfg.Environment = "production"
	cfg.OTLPEndpoint = "otel-collector:4317"
	cfg.Insecure = true
	assert.Error(t, cfg.Validate())
}

func TestLogger_WritesFieldsAndServiceName(t *testing.T) {
	provider, logs := newTestProvider(t)

	provider.Logger().With(observability.String("component", "health")).Warn(
		context.Background(),
		"health check failed",
		observability.String("check", "cache"),
		observability.Duration("latency", 150*time.Millisecond),
		observability.Error(errors.New("connection refused")),
	)

	entries := logs.FilterMessage("health check failed").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "observable-service-test", fields["service"])
	assert.Equal(t, "health", fields["component"])
	assert.Equal(t, "cache", fields["check"])
	assert.Equal(t, "connection refused", fields["error"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestLogger_AddsTraceContext(t *testing.T) {
	provider, logs := newTestProvider(t)

	ctx, span := provider.Tracer().Start(context.Background(), "GET /api/data",
		observability.WithSpanKind(observability.SpanKindServer))
	defer span.End()

	provider.Logger().Info(ctx, "request handled")

	entries := logs.FilterMessage("request handled").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, span.Context().TraceID(), fields["trace_id"])
	assert.Equal(t, span.Context().SpanID(), fields["span_id"])
	assert.NotEmpty(t, span.Context().TraceID())
	assert.True(t, span.Context().IsSampled())
}

func TestTracer_SpanFromContext(t *testing.T) {
	provider, _ := newTestProvider(t)

	ctx, span := provider.Tracer().Start(context.Background(), "outer")
	defer span.End()

	current := provider.Tracer().SpanFromContext(ctx)
	assert.Equal(t, span.Context().SpanID(), current.Context().SpanID())

	empty := provider.Tracer().SpanFromContext(context.Background())
	assert.Equal(t, "", empty.Context().TraceID())
}
