package health

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/metrics"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/JailtonJunior94/observable-service/pkg/observability/noop"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCheckTimeout = time.Second
	MaxCheckTimeout     = 2 * time.Second

	defaultMaxConcurrent = 10
)

var ErrInvalidCheck = errors.New("health: check needs a name and a probe")

// Evaluator runs registered checks on demand. Checks are isolated: a failing,
// hanging or panicking probe only affects its own result.
type Evaluator struct {
	mu     sync.RWMutex
	checks map[string]Check

	metrics        *metrics.Registry
	logger         observability.Logger
	tracer         observability.Tracer
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	maxConcurrent  int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout sets the per-check timeout used when a check has none.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithMaxTimeout caps every per-check timeout.
func WithMaxTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.maxTimeout = d
		}
	}
}

// WithMaxConcurrent limits how many probes run at once.
func WithMaxConcurrent(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithTracer emits a span per check.
func WithTracer(tracer observability.Tracer) Option {
	return func(e *Evaluator) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// NewEvaluator creates an evaluator with no checks. A nil registry disables metrics.
func NewEvaluator(registry *metrics.Registry, logger observability.Logger, opts ...Option) *Evaluator {
	provider := noop.NewProvider()
	if logger == nil {
		logger = provider.Logger()
	}

	e := &Evaluator{
		checks:         make(map[string]Check),
		metrics:        registry,
		logger:         logger,
		tracer:         provider.Tracer(),
		defaultTimeout: DefaultCheckTimeout,
		maxTimeout:     MaxCheckTimeout,
		maxConcurrent:  defaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defaultTimeout > e.maxTimeout {
		e.defaultTimeout = e.maxTimeout
	}
	return e
}

// Register adds a check, replacing any check with the same name.
func (e *Evaluator) Register(check Check) error {
	if check.Name == "" || check.Probe == nil {
		return ErrInvalidCheck
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.checks[check.Name]; ok && old.Critical != check.Critical {
		e.forget(check.Name)
	}
	e.checks[check.Name] = check
	return nil
}

// Unregister removes a check and reports whether it existed.
func (e *Evaluator) Unregister(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.checks[name]; !ok {
		return false
	}
	delete(e.checks, name)
	e.forget(name)
	return true
}

// Has reports whether a check is registered under name.
func (e *Evaluator) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.checks[name]
	return ok
}

// Names lists the registered checks in order.
func (e *Evaluator) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.checks))
	for name := range e.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs every registered check concurrently and aggregates the
// results. It always returns a report; its latency is bounded by the check
// timeouts even when probes never return.
func (e *Evaluator) CheckHealth(ctx context.Context) Report {
	e.mu.RLock()
	checks := make([]Check, 0, len(e.checks))
	for _, check := range e.checks {
		checks = append(checks, check)
	}
	e.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.maxConcurrent)
	for _, check := range checks {
		g.Go(func() error {
			result := e.run(ctx, check)

			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:    Aggregate(results),
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}

	if e.metrics != nil {
		_ = e.metrics.Increment(metrics.HealthCheckTotal, metrics.Labels{"status": string(report.Status)})
	}
	return report
}

func (e *Evaluator) timeoutFor(check Check) time.Duration {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	if timeout > e.maxTimeout {
		timeout = e.maxTimeout
	}
	return timeout
}

func (e *Evaluator) run(ctx context.Context, check Check) CheckResult {
	ctx, span := e.tracer.Start(ctx, "health.check",
		observability.WithSpanKind(observability.SpanKindInternal),
		observability.WithAttributes(
			observability.String("health.check.name", check.Name),
			observability.Bool("health.check.critical", check.Critical),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeoutFor(check))
	defer cancel()

	start := time.Now()
	err := e.probe(ctx, check)
	elapsed := time.Since(start)

	result := CheckResult{
		OK:        err == nil,
		LatencyMS: float64(elapsed) / float64(time.Millisecond),
		Critical:  check.Critical,
		CheckedAt: start.UTC(),
	}

	if err != nil {
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(observability.StatusCodeError, result.Error)
		e.logger.Warn(ctx, "health check failed",
			observability.String("check", check.Name),
			observability.Bool("critical", check.Critical),
			observability.Float64("latency_ms", result.LatencyMS),
			observability.Error(err),
		)
	} else {
		span.SetStatus(observability.StatusCodeOK, "")
	}

	e.record(check, result.OK, elapsed)
	return result
}

func (e *Evaluator) record(check Check, ok bool, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}

	// A check removed or replaced while it ran must not bring its series back.
	e.mu.RLock()
	defer e.mu.RUnlock()
	if current, registered := e.checks[check.Name]; !registered || current.Critical != check.Critical {
		return
	}

	up := 0.0
	if ok {
		up = 1
	}
	_ = e.metrics.Set(metrics.DependencyUp, metrics.Labels{
		"dependency": check.Name,
		"critical":   strconv.FormatBool(check.Critical),
	}, up)
	_ = e.metrics.Observe(metrics.DependencyCheckDuration, metrics.Labels{"dependency": check.Name}, elapsed.Seconds())
}

// forget drops the series recorded for a dependency that is no longer checked.
func (e *Evaluator) forget(name string) {
	if e.metrics == nil {
		return
	}
	match := metrics.Labels{"dependency": name}
	_, _ = e.metrics.DeleteSeries(metrics.DependencyUp, match)
	_, _ = e.metrics.DeleteSeries(metrics.DependencyCheckDuration, match)
}

var (
	errTimeout  = errors.New("timeout")
	errCanceled = errors.New("canceled")
)

// probe runs the check in its own goroutine so a probe ignoring ctx is abandoned
// at the deadline instead of blocking the report.
func (e *Evaluator) probe(ctx context.Context, check Check) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error(ctx, "health check panicked",
					observability.String("check", check.Name),
					observability.Any("panic", r),
					observability.String("stack", string(debug.Stack())),
				)
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- check.Probe(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return errTimeout
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errTimeout
		}
		return errCanceled
	}
}
