package chiserver

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
	"github.com/JailtonJunior94/observable-service/pkg/metrics"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// unmatchedRoute labels requests no route matched, keeping path cardinality bounded.
const unmatchedRoute = "unmatched"

// requestIDMiddleware generates or propagates a request ID.
func requestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get(common.RequestIDHeader))
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}

			w.Header().Set(common.RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(common.ContextWithRequestID(r.Context(), requestID)))
		})
	}
}

// tracingMiddleware continues the caller's W3C trace and opens a server span
// named after the matched route.
func tracingMiddleware(o11y observability.Observability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := o11y.Tracer().Start(ctx, "HTTP "+r.Method,
				observability.WithSpanKind(observability.SpanKindServer),
				observability.WithAttributes(
					observability.String("http.request.method", r.Method),
					observability.String("url.path", r.URL.Path),
					observability.String("request_id", common.RequestIDFromContext(ctx)),
				),
			)
			defer span.End()

			rw := common.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			status := rw.Status()
			span.SetAttributes(
				observability.String("http.route", routePattern(r)),
				observability.Int("http.response.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(observability.StatusCodeError, http.StatusText(status))
			}
		})
	}
}

// metricsMiddleware tracks in-flight requests and records every completed
// request, then logs it.
func metricsMiddleware(recorder *metrics.Recorder, o11y observability.Observability) func(http.Handler) http.Handler {
	registry := recorder.Registry()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			_ = registry.AddGauge(metrics.HTTPRequestsInFlight, nil, 1)
			defer func() { _ = registry.AddGauge(metrics.HTTPRequestsInFlight, nil, -1) }()

			rw := common.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			path := routePattern(r)
			status := rw.Status()

			if err := recorder.RecordRequest(r.Context(), metrics.RequestRecord{
				Method:   r.Method,
				Path:     path,
				Status:   status,
				Duration: duration,
			}); err != nil {
				o11y.Logger().Error(r.Context(), "failed to record request metrics", observability.Error(err))
			}

			o11y.Logger().Info(r.Context(), "request completed",
				observability.String("method", r.Method),
				observability.String("path", path),
				observability.Int("status", status),
				observability.Float64("duration_ms", float64(duration)/float64(time.Millisecond)),
				observability.String("request_id", common.RequestIDFromContext(r.Context())),
			)
		})
	}
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}

// recoverMiddleware turns a panic into a logged 500 problem response.
func recoverMiddleware(o11y observability.Observability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := common.NewResponseWriter(w)

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				requestID := common.RequestIDFromContext(r.Context())
				o11y.Logger().Error(r.Context(), "panic recovered",
					observability.String("path", r.URL.Path),
					observability.String("method", r.Method),
					observability.String("remote_addr", r.RemoteAddr),
					observability.String("request_id", requestID),
					observability.Any("panic", recovered),
					observability.String("stack", string(debug.Stack())),
				)

				if !rw.HeaderWritten() {
					writeErrorResponse(rw, r, http.StatusInternalServerError, "Internal server error")
					return
				}
				o11y.Logger().Warn(r.Context(), "cannot send panic error response: headers already sent",
					observability.String("request_id", requestID),
				)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

// bodyLimitMiddleware enforces a maximum request body size. MaxBytesReader
// also covers chunked bodies without Content-Length.
func bodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeErrorResponse(w, r, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// timeoutMiddleware cancels the request context after the route's timeout
// and answers 503 if the handler has not written yet. A panic in the handler
// goroutine is re-raised on the serving goroutine so recoverMiddleware sees it.
func timeoutMiddleware(globalTimeout time.Duration, routeTimeouts map[string]time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timeout := globalTimeout
			if routeTimeout, exists := routeTimeouts[r.URL.Path]; exists {
				timeout = routeTimeout
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := newTimeoutWriter(w)
			done := make(chan any, 1)

			go func() {
				defer func() {
					done <- recover()
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case recovered := <-done:
				if recovered != nil {
					panic(recovered)
				}
				// A handler that never wrote still gets its headers on the implicit 200.
				tw.mu.Lock()
				if !tw.wroteHeader {
					tw.writeHeaderLocked(http.StatusOK)
				}
				tw.mu.Unlock()
			case <-ctx.Done():
				tw.mu.Lock()
				if !tw.wroteHeader {
					tw.wroteHeader = true
					tw.timedOut = true
					writeErrorResponse(w, r, http.StatusServiceUnavailable, "Request timeout exceeded")
				}
				tw.mu.Unlock()

				// Give a well-behaved handler a moment to observe cancellation.
				cleanup := time.NewTimer(100 * time.Millisecond)
				defer cleanup.Stop()
				select {
				case <-done:
				case <-cleanup.C:
				}

				// Nothing reaches w once this handler returns.
				tw.mu.Lock()
				tw.timedOut = true
				tw.mu.Unlock()
			}
		})
	}
}

// timeoutWriter gives the handler goroutine its own header map and copies it
// to the real writer on the first write, all under mu. The timeout branch
// only touches the real writer under the same lock. Writes after the timeout
// are dropped.
type timeoutWriter struct {
	w           http.ResponseWriter
	h           http.Header
	mu          sync.Mutex
	wroteHeader bool
	timedOut    bool
}

func newTimeoutWriter(w http.ResponseWriter) *timeoutWriter {
	return &timeoutWriter{w: w, h: make(http.Header)}
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.w.Write(b)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.wroteHeader = true
	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = append([]string(nil), v...)
	}
	tw.w.WriteHeader(code)
}

// securityHeadersMiddleware adds the API security headers to every response.
func securityHeadersMiddleware(production bool) func(http.Handler) http.Handler {
	headers := common.DefaultSecurityHeaders(production)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers.Apply(w)
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware answers preflights and rejects origins outside the allow-list.
// Origins were validated with the config, so a parse error cannot happen here.
func corsMiddleware(raw string) func(http.Handler) http.Handler {
	origins, _ := common.ParseOrigins(raw)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !origins.Allows(origin) {
				writeErrorResponse(w, r, http.StatusForbidden, "origin not allowed")
				return
			}

			// Credentials are never allowed together with a wildcard.
			if origins.Wildcard() {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+common.RequestIDHeader+", traceparent")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
