package zapotel

import (
	"context"
	"fmt"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type otelTracer struct {
	tracer oteltrace.Tracer
}

func (t *otelTracer) Start(ctx context.Context, spanName string, opts ...observability.SpanOption) (context.Context, observability.Span) {
	cfg := observability.NewSpanConfig(opts)

	startOpts := []oteltrace.SpanStartOption{oteltrace.WithSpanKind(toSpanKind(cfg.Kind))}
	if attrs := toAttributes(cfg.Attributes); attrs != nil {
		startOpts = append(startOpts, oteltrace.WithAttributes(attrs...))
	}

	ctx, span := t.tracer.Start(ctx, spanName, startOpts...)
	return ctx, &otelSpan{span: span}
}

func (t *otelTracer) SpanFromContext(ctx context.Context) observability.Span {
	return &otelSpan{span: oteltrace.SpanFromContext(ctx)}
}

type otelSpan struct {
	span oteltrace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttributes(fields ...observability.Field) {
	if attrs := toAttributes(fields); attrs != nil {
		s.span.SetAttributes(attrs...)
	}
}

func (s *otelSpan) SetStatus(code observability.StatusCode, description string) {
	switch code {
	case observability.StatusCodeOK:
		s.span.SetStatus(codes.Ok, description)
	case observability.StatusCodeError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *otelSpan) RecordError(err error, fields ...observability.Field) {
	if err == nil {
		return
	}
	s.span.RecordError(err, oteltrace.WithAttributes(toAttributes(fields)...))
}

func (s *otelSpan) AddEvent(name string, fields ...observability.Field) {
	s.span.AddEvent(name, oteltrace.WithAttributes(toAttributes(fields)...))
}

func (s *otelSpan) Context() observability.SpanContext {
	return spanContext{sc: s.span.SpanContext()}
}

type spanContext struct {
	sc oteltrace.SpanContext
}

func (c spanContext) TraceID() string {
	if !c.sc.HasTraceID() {
		return ""
	}
	return c.sc.TraceID().String()
}

func (c spanContext) SpanID() string {
	if !c.sc.HasSpanID() {
		return ""
	}
	return c.sc.SpanID().String()
}

func (c spanContext) IsSampled() bool {
	return c.sc.IsSampled()
}

func toSpanKind(kind observability.SpanKind) oteltrace.SpanKind {
	switch kind {
	case observability.SpanKindServer:
		return oteltrace.SpanKindServer
	case observability.SpanKindClient:
		return oteltrace.SpanKindClient
	default:
		return oteltrace.SpanKindInternal
	}
}

func toAttributes(fields []observability.Field) []attribute.KeyValue {
	if len(fields) == 0 {
		return nil
	}

	attrs := make([]attribute.KeyValue, len(fields))
	for i, f := range fields {
		switch v := f.Value.(type) {
		case string:
			attrs[i] = attribute.String(f.Key, v)
		case int:
			attrs[i] = attribute.Int(f.Key, v)
		case int64:
			attrs[i] = attribute.Int64(f.Key, v)
		case float64:
			attrs[i] = attribute.Float64(f.Key, v)
		case bool:
			attrs[i] = attribute.Bool(f.Key, v)
		case time.Duration:
			attrs[i] = attribute.Int64(f.Key+"_ms", v.Milliseconds())
		case error:
			attrs[i] = attribute.String(f.Key, f.StringValue())
		default:
			attrs[i] = attribute.String(f.Key, fmt.Sprintf("%v", v))
		}
	}
	return attrs
}
