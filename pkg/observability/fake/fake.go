// Package fake provides an observability provider that captures logs and
// spans so tests can assert on them.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

// Provider implements observability.Observability for tests.
type Provider struct {
	tracer *FakeTracer
	logger *FakeLogger
}

// NewProvider creates a new fake observability provider.
func NewProvider() *Provider {
	return &Provider{
		tracer: NewFakeTracer(),
		logger: NewFakeLogger(),
	}
}

func (p *Provider) Tracer() observability.Tracer {
	return p.tracer
}

func (p *Provider) Logger() observability.Logger {
	return p.logger
}

// FakeLogger returns the concrete logger for assertions.
func (p *Provider) FakeLogger() *FakeLogger {
	return p.logger
}

// FakeTracer returns the concrete tracer for assertions.
func (p *Provider) FakeTracer() *FakeTracer {
	return p.tracer
}

// FakeTracer records every span it starts.
type FakeTracer struct {
	mu    sync.RWMutex
	spans []*FakeSpan
}

// NewFakeTracer creates a new fake tracer.
func NewFakeTracer() *FakeTracer {
	return &FakeTracer{}
}

// Start records a span named spanName.
func (t *FakeTracer) Start(ctx context.Context, spanName string, opts ...observability.SpanOption) (context.Context, observability.Span) {
	cfg := observability.NewSpanConfig(opts)

	span := &FakeSpan{
		Name:       spanName,
		Kind:       cfg.Kind,
		StartTime:  time.Now(),
		Attributes: cfg.Attributes,
	}

	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()

	return ctx, span
}

// SpanFromContext returns a detached span.
func (t *FakeTracer) SpanFromContext(context.Context) observability.Span {
	return &FakeSpan{}
}

// Spans returns a copy of the recorded spans.
func (t *FakeTracer) Spans() []*FakeSpan {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result := make([]*FakeSpan, len(t.spans))
	copy(result, t.spans)
	return result
}

// SpansNamed returns the recorded spans with the given name.
func (t *FakeTracer) SpansNamed(name string) []*FakeSpan {
	var result []*FakeSpan
	for _, span := range t.Spans() {
		if span.Name == name {
			result = append(result, span)
		}
	}
	return result
}

// FakeSpan captures span operations.
type FakeSpan struct {
	mu          sync.RWMutex
	Name        string
	Kind        observability.SpanKind
	StartTime   time.Time
	EndTime     *time.Time
	Attributes  []observability.Field
	Events      []string
	Status      observability.StatusCode
	StatusDesc  string
	RecordedErr error
}

func (s *FakeSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
}

func (s *FakeSpan) SetAttributes(fields ...observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attributes = append(s.Attributes, fields...)
}

func (s *FakeSpan) SetStatus(code observability.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = code
	s.StatusDesc = description
}

func (s *FakeSpan) RecordError(err error, fields ...observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RecordedErr = err
	s.Attributes = append(s.Attributes, fields...)
}

func (s *FakeSpan) AddEvent(name string, _ ...observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, name)
}

func (s *FakeSpan) Context() observability.SpanContext {
	return fakeSpanContext{}
}

// Ended reports whether End was called.
func (s *FakeSpan) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EndTime != nil
}

// StatusCode returns the last status set on the span.
func (s *FakeSpan) StatusCode() observability.StatusCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

type fakeSpanContext struct{}

func (fakeSpanContext) TraceID() string { return "fake-trace-id" }
func (fakeSpanContext) SpanID() string  { return "fake-span-id" }
func (fakeSpanContext) IsSampled() bool { return true }

// LogEntry represents a captured log entry.
type LogEntry struct {
	Level     observability.LogLevel
	Message   string
	Fields    []observability.Field
	Timestamp time.Time
}

// Field returns the value of the first field named key.
func (e LogEntry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// FakeLogger captures log entries. Children created with With share storage
// with their parent.
type FakeLogger struct {
	mu      *sync.RWMutex
	entries *[]LogEntry
	fields  []observability.Field
}

// NewFakeLogger creates a new fake logger.
func NewFakeLogger() *FakeLogger {
	entries := make([]LogEntry, 0)
	return &FakeLogger{
		mu:      &sync.RWMutex{},
		entries: &entries,
	}
}

func (l *FakeLogger) Debug(_ context.Context, msg string, fields ...observability.Field) {
	l.append(observability.LogLevelDebug, msg, fields)
}

func (l *FakeLogger) Info(_ context.Context, msg string, fields ...observability.Field) {
	l.append(observability.LogLevelInfo, msg, fields)
}

func (l *FakeLogger) Warn(_ context.Context, msg string, fields ...observability.Field) {
	l.append(observability.LogLevelWarn, msg, fields)
}

func (l *FakeLogger) Error(_ context.Context, msg string, fields ...observability.Field) {
	l.append(observability.LogLevelError, msg, fields)
}

func (l *FakeLogger) append(level observability.LogLevel, msg string, fields []observability.Field) {
	all := make([]observability.Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)

	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, LogEntry{
		Level:     level,
		Message:   msg,
		Fields:    all,
		Timestamp: time.Now(),
	})
}

func (l *FakeLogger) With(fields ...observability.Field) observability.Logger {
	merged := make([]observability.Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)

	return &FakeLogger{
		mu:      l.mu,
		entries: l.entries,
		fields:  merged,
	}
}

// Entries returns a copy of all captured entries.
func (l *FakeLogger) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]LogEntry, len(*l.entries))
	copy(result, *l.entries)
	return result
}

// EntriesWithMessage returns the captured entries whose message equals msg.
func (l *FakeLogger) EntriesWithMessage(msg string) []LogEntry {
	var result []LogEntry
	for _, entry := range l.Entries() {
		if entry.Message == msg {
			result = append(result, entry)
		}
	}
	return result
}

// Reset clears all captured entries.
func (l *FakeLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = make([]LogEntry, 0)
}
