package loadgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

// maxDrainSize bounds how much of a discarded response body is read so the
// connection can be reused.
const maxDrainSize = 1 << 20

// RetryPolicy decides whether an attempt should be repeated.
type RetryPolicy func(err error, resp *http.Response) bool

// DefaultRetryPolicy retries network errors and 5xx responses. Context
// cancellation is never retried.
func DefaultRetryPolicy(err error, resp *http.Response) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}

// Transport is an http.RoundTripper that traces every request and retries
// failed attempts with exponential backoff. Requests with a body are not
// retried because the body cannot be replayed.
type Transport struct {
	base       http.RoundTripper
	tracer     observability.Tracer
	retries    int
	policy     RetryPolicy
	newBackOff func() backoff.BackOff
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithRetries sets how many extra attempts follow a retryable failure.
func WithRetries(n int) TransportOption {
	return func(t *Transport) {
		if n >= 0 {
			t.retries = n
		}
	}
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) TransportOption {
	return func(t *Transport) {
		if policy != nil {
			t.policy = policy
		}
	}
}

// WithBackOff overrides the backoff schedule between attempts.
func WithBackOff(factory func() backoff.BackOff) TransportOption {
	return func(t *Transport) {
		if factory != nil {
			t.newBackOff = factory
		}
	}
}

// WithTracer sets the tracer used for client spans.
func WithTracer(tracer observability.Tracer) TransportOption {
	return func(t *Transport) {
		if tracer != nil {
			t.tracer = tracer
		}
	}
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper, opts ...TransportOption) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	t := &Transport{
		base:       base,
		policy:     DefaultRetryPolicy,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// RoundTrip implements http.RoundTripper without mutating req.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.tracer != nil {
		var span observability.Span
		ctx, span = t.tracer.Start(ctx, "loadgen.request",
			observability.WithSpanKind(observability.SpanKindClient),
			observability.WithAttributes(
				observability.String("http.method", req.Method),
				observability.String("http.url", req.URL.String()),
			),
		)
		defer span.End()

		req = req.Clone(ctx)
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := t.roundTrip(ctx, req, span)
		switch {
		case err != nil:
			span.RecordError(err, observability.String("error.type", classifyError(err)))
			span.SetStatus(observability.StatusCodeError, err.Error())
		case resp.StatusCode >= http.StatusInternalServerError:
			span.SetAttributes(observability.Int("http.status_code", resp.StatusCode))
			span.SetStatus(observability.StatusCodeError, http.StatusText(resp.StatusCode))
		default:
			span.SetAttributes(observability.Int("http.status_code", resp.StatusCode))
		}
		return resp, err
	}

	return t.roundTrip(ctx, req, nil)
}

func (t *Transport) roundTrip(ctx context.Context, req *http.Request, span observability.Span) (*http.Response, error) {
	if t.retries == 0 || (req.Body != nil && req.Body != http.NoBody) {
		return t.base.RoundTrip(req)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(t.newBackOff(), uint64(t.retries)), ctx)
	b.Reset()

	for attempt := 1; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		if !t.policy(err, resp) {
			return resp, err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			if ctxErr := ctx.Err(); ctxErr != nil {
				drainBody(resp)
				return nil, ctxErr
			}
			return resp, err
		}

		if span != nil {
			span.AddEvent("retry_attempt",
				observability.Int("attempt", attempt),
				observability.String("reason", retryReason(err, resp)),
			)
		}
		drainBody(resp)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainSize)
	_ = resp.Body.Close()
}

func retryReason(err error, resp *http.Response) string {
	if err != nil {
		return classifyError(err)
	}
	if resp != nil {
		return fmt.Sprintf("status_%d", resp.StatusCode)
	}
	return "unknown"
}

func classifyError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "unknown"
	}
}
