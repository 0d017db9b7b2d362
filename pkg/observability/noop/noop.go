// Package noop provides an observability provider that discards everything.
package noop

import (
	"context"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

// Provider is a zero-overhead observability.Observability.
type Provider struct {
	tracer noopTracer
	logger noopLogger
}

// NewProvider creates a new no-op observability provider.
func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Tracer() observability.Tracer {
	return p.tracer
}

func (p *Provider) Logger() observability.Logger {
	return p.logger
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ ...observability.SpanOption) (context.Context, observability.Span) {
	return ctx, noopSpan{}
}

func (noopTracer) SpanFromContext(context.Context) observability.Span {
	return noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End() {}
func (noopSpan) SetAttributes(...observability.Field) {}
func (noopSpan) SetStatus(observability.StatusCode, string) {}
func (noopSpan) RecordError(error, ...observability.Field) {}
func (noopSpan) AddEvent(string, ...observability.Field) {}
func (noopSpan) Context() observability.SpanContext { return noopSpanContext{} }

type noopSpanContext struct{}

func (noopSpanContext) TraceID() string { return "" }
func (noopSpanContext) SpanID() string  { return "" }
func (noopSpanContext) IsSampled() bool { return false }

type noopLogger struct{}

func (noopLogger) Debug(context.Context, string, ...observability.Field) {}
func (noopLogger) Info(context.Context, string, ...observability.Field)  {}
func (noopLogger) Warn(context.Context, string, ...observability.Field)  {}
func (noopLogger) Error(context.Context, string, ...observability.Field) {}

func (l noopLogger) With(...observability.Field) observability.Logger {
	return l
}
