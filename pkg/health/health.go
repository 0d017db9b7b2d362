// Package health evaluates registered dependency checks into a single
// service status.
package health

import (
	"context"
	"time"
)

// Status is the aggregated health of the service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Probe reports whether a dependency is usable. It must honour ctx.
type Probe func(ctx context.Context) error

// Check is a named dependency probe. A failing critical check makes the
// service unhealthy; a failing non-critical check only degrades it.
type Check struct {
	Name     string
	Critical bool
	// Timeout overrides the evaluator default. It is capped by the evaluator maximum.
	Timeout time.Duration
	Probe   Probe
}

// CheckResult is the outcome of one probe run.
type CheckResult struct {
	OK        bool      `json:"ok"`
	LatencyMS float64   `json:"latency_ms"`
	Critical  bool      `json:"critical"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report is the result of one evaluation.
type Report struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
}

// Healthy reports whether the service should receive traffic.
func (r Report) Healthy() bool {
	return r.Status != StatusUnhealthy
}

// Aggregate derives the service status from check results.
func Aggregate(results map[string]CheckResult) Status {
	status := StatusHealthy
	for _, result := range results {
		if result.OK {
			continue
		}
		if result.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}
