package chiserver

import (
	"net/http"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/health"
	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
)

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status      health.Status                 `json:"status"`
	Checks      map[string]health.CheckResult `json:"checks"`
	Timestamp   time.Time                     `json:"timestamp"`
	Service     string                        `json:"service"`
	Version     string                        `json:"version"`
	Environment string                        `json:"environment"`
	Uptime      float64                       `json:"uptime"`
}

// healthHandler answers 503 only when a critical dependency fails; a degraded
// service keeps receiving traffic.
func healthHandler(config common.Config, evaluator *health.Evaluator, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := evaluator.CheckHealth(r.Context())

		statusCode := http.StatusOK
		if !report.Healthy() {
			statusCode = http.StatusServiceUnavailable
		}

		common.WriteJSON(w, statusCode, HealthResponse{
			Status:      report.Status,
			Checks:      report.Checks,
			Timestamp:   report.Timestamp,
			Service:     config.ServiceName,
			Version:     config.ServiceVersion,
			Environment: config.Environment,
			Uptime:      time.Since(startTime).Seconds(),
		})
	}
}

// readyHandler returns a handler for the /ready endpoint.
func readyHandler(evaluator *health.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if !evaluator.CheckHealth(r.Context()).Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Service Unavailable"))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// liveHandler only proves the process serves HTTP; dependencies are ignored
// so a cache outage never restarts the pod.
func liveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
