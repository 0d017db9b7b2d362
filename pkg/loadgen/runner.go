// Package loadgen drives HTTP traffic at a running backend and summarises
// what came back.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JailtonJunior94/observable-service/pkg/metrics"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

const (
	DefaultTarget      = "http://localhost:6000"
	DefaultRequests    = 200
	DefaultConcurrency = 10
	DefaultTimeout     = 10 * time.Second
)

var ErrInvalidRunner = errors.New("invalid runner")

// Runner issues Requests GETs spread round-robin over Paths.
type Runner struct {
	Target      string
	Paths       []string
	Requests    int
	Concurrency int
	Retries     int
	Timeout     time.Duration

	// Client overrides the HTTP client; its transport is used as the base
	// of the retrying transport.
	Client *http.Client
	Tracer observability.Tracer
}

// Report summarises a run. Latencies are in milliseconds.
type Report struct {
	Requests     int            `json:"requests"`
	StatusCounts map[int]int    `json:"status_counts"`
	Errors       int            `json:"errors"`
	ErrorKinds   map[string]int `json:"error_kinds,omitempty"`
	Elapsed      time.Duration  `json:"elapsed"`
	Throughput   float64        `json:"requests_per_second"`
	P50          float64        `json:"p50_ms"`
	P95          float64        `json:"p95_ms"`
	P99          float64        `json:"p99_ms"`
}

// Failures counts transport errors plus 5xx responses.
func (r Report) Failures() int {
	n := r.Errors
	for status, count := range r.StatusCounts {
		if status >= http.StatusInternalServerError {
			n += count
		}
	}
	return n
}

// String renders the report for terminals.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "requests: %d in %s (%.1f req/s)\n", r.Requests, r.Elapsed.Round(time.Millisecond), r.Throughput)

	statuses := make([]int, 0, len(r.StatusCounts))
	for status := range r.StatusCounts {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)
	for _, status := range statuses {
		fmt.Fprintf(&b, "  %d: %d\n", status, r.StatusCounts[status])
	}
	if r.Errors > 0 {
		fmt.Fprintf(&b, "  errors: %d\n", r.Errors)
	}
	fmt.Fprintf(&b, "latency p50=%.1fms p95=%.1fms p99=%.1fms\n", r.P50, r.P95, r.P99)
	return b.String()
}

func (r *Runner) validate() error {
	var errs []error
	if _, err := url.ParseRequestURI(r.Target); err != nil {
		errs = append(errs, fmt.Errorf("target: %w", err))
	}
	if r.Requests <= 0 {
		errs = append(errs, errors.New("requests must be positive"))
	}
	if r.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if r.Retries < 0 {
		errs = append(errs, errors.New("retries must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRunner, errors.Join(errs...))
	}
	return nil
}

func (r *Runner) client() *http.Client {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var base http.RoundTripper
	if r.Client != nil {
		base = r.Client.Transport
		if r.Client.Timeout > 0 {
			timeout = r.Client.Timeout
		}
	}

	return &http.Client{
		Transport: NewTransport(base, WithRetries(r.Retries), WithTracer(r.Tracer)),
		Timeout:   timeout,
	}
}

// Run sends every request and blocks until all have completed or ctx is
// done. Per-request failures are counted in the report, not returned.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if err := r.validate(); err != nil {
		return Report{}, err
	}

	paths := r.Paths
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	target := strings.TrimRight(r.Target, "/")
	client := r.client()

	var (
		mu        sync.Mutex
		statuses  = make(map[int]int)
		errKinds  = make(map[string]int)
		failures  int
		latencies = metrics.NewSampleWindow(r.Requests)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)

	start := time.Now()
	for i := 0; i < r.Requests; i++ {
		if gctx.Err() != nil {
			break
		}

		path := paths[i%len(paths)]
		g.Go(func() error {
			began := time.Now()
			status, err := send(gctx, client, target+path)
			elapsed := time.Since(began)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				errKinds[classifyError(err)]++
				return nil
			}
			statuses[status]++
			latencies.Add(float64(elapsed.Microseconds()) / 1000)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	report := Report{
		StatusCounts: statuses,
		Errors:       failures,
		ErrorKinds:   errKinds,
		Elapsed:      elapsed,
		P50:          latencies.Percentile(50),
		P95:          latencies.Percentile(95),
		P99:          latencies.Percentile(99),
	}
	for _, n := range statuses {
		report.Requests += n
	}
	report.Requests += failures
	if elapsed > 0 {
		report.Throughput = float64(report.Requests) / elapsed.Seconds()
	}

	return report, ctx.Err()
}

func send(ctx context.Context, client *http.Client, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
