package loadgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunner_Validate(t *testing.T) {
	tests := []struct {
		name   string
		runner Runner
	}{
		{name: "bad target", runner: Runner{Target: "not a url", Requests: 1, Concurrency: 1}},
		{name: "zero requests", runner: Runner{Target: DefaultTarget, Requests: 0, Concurrency: 1}},
		{name: "zero concurrency", runner: Runner{Target: DefaultTarget, Requests: 1, Concurrency: 0}},
		{name: "negative retries", runner: Runner{Target: DefaultTarget, Requests: 1, Concurrency: 1, Retries: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.runner.Run(context.Background())
			if !errors.Is(err, ErrInvalidRunner) {
				t.Errorf("expected ErrInvalidRunner, got %v", err)
			}
		})
	}
}

func TestRunner_CountsStatusesPerPath(t *testing.T) {
	var mu sync.Mutex
	hits := make(map[string]int)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()

		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	runner := Runner{
		Target:      srv.URL + "/",
		Paths:       []string{"/api/data", "/broken"},
		Requests:    40,
		Concurrency: 5,
	}

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Requests != 40 {
		t.Errorf("expected 40 requests, got %d", report.Requests)
	}
	if report.StatusCounts[http.StatusOK] != 20 || report.StatusCounts[http.StatusInternalServerError] != 20 {
		t.Errorf("unexpected status counts: %v", report.StatusCounts)
	}
	if report.Failures() != 20 {
		t.Errorf("expected 20 failures, got %d", report.Failures())
	}
	if hits["/api/data"] != 20 || hits["/broken"] != 20 {
		t.Errorf("requests not spread round-robin: %v", hits)
	}
	if report.P50 > report.P95 || report.P95 > report.P99 {
		t.Errorf("percentiles out of order: p50=%f p95=%f p99=%f", report.P50, report.P95, report.P99)
	}
	if !strings.Contains(report.String(), "500: 20") {
		t.Errorf("report text missing status line:\n%s", report.String())
	}
}

func TestRunner_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}))
	defer srv.Close()

	runner := Runner{Target: srv.URL, Paths: []string{"/"}, Requests: 30, Concurrency: 3}
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if peak.Load() > 3 {
		t.Errorf("expected at most 3 concurrent requests, saw %d", peak.Load())
	}
}

func TestRunner_RecordsTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	runner := Runner{Target: url, Paths: []string{"/"}, Requests: 4, Concurrency: 2, Timeout: time.Second}
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Errors != 4 {
		t.Errorf("expected 4 errors, got %d", report.Errors)
	}
	if report.ErrorKinds["network"] != 4 {
		t.Errorf("expected network errors, got %v", report.ErrorKinds)
	}
	if len(report.StatusCounts) != 0 {
		t.Errorf("expected no statuses, got %v", report.StatusCounts)
	}
}

func TestRunner_RetriesFlakyBackend(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1)%2 == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	runner := Runner{Target: srv.URL, Paths: []string{"/"}, Requests: 5, Concurrency: 1, Retries: 1}
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.StatusCounts[http.StatusOK] != 5 {
		t.Errorf("expected every request to succeed after one retry, got %v", report.StatusCounts)
	}
	if calls.Load() != 10 {
		t.Errorf("expected 10 calls, got %d", calls.Load())
	}
}
