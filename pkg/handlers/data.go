// Package handlers holds the application routes served next to the health
// and metrics endpoints: the demo data endpoint, the load simulator, the JSON
// metrics view and the fault injection admin API.
package handlers

import (
	"context"
	"math/rand/v2"
	"net/http"
	"runtime"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
)

// DataResponse is the body of GET /api/data.
type DataResponse struct {
	Message      string     `json:"message"`
	Timestamp    time.Time  `json:"timestamp"`
	RandomNumber int        `json:"random_number"`
	ServerInfo   ServerInfo `json:"server_info"`
}

// ServerInfo describes the process serving the request.
type ServerInfo struct {
	GoVersion   string `json:"go_version"`
	Framework   string `json:"framework"`
	Environment string `json:"environment"`
}

// DataHandler serves a representative payload after a short simulated
// processing delay, giving the metrics pipeline realistic traffic.
type DataHandler struct {
	environment string
	minDelay    time.Duration
	maxDelay    time.Duration
}

// NewDataHandler creates a DataHandler. With simulateDelay false it answers immediately.
func NewDataHandler(environment string, simulateDelay bool) *DataHandler {
	h := &DataHandler{environment: environment}
	if simulateDelay {
		h.minDelay = 10 * time.Millisecond
		h.maxDelay = 100 * time.Millisecond
	}
	return h
}

// GetData handles GET /api/data.
func (h *DataHandler) GetData(w http.ResponseWriter, r *http.Request) error {
	if err := h.process(r.Context()); err != nil {
		return err
	}

	common.WriteJSON(w, http.StatusOK, DataResponse{
		Message:      "Hello from the backend!",
		Timestamp:    time.Now().UTC(),
		RandomNumber: rand.IntN(1000) + 1,
		ServerInfo: ServerInfo{
			GoVersion:   runtime.Version(),
			Framework:   "chi",
			Environment: h.environment,
		},
	})
	return nil
}

func (h *DataHandler) process(ctx context.Context) error {
	if h.maxDelay <= 0 {
		return nil
	}

	delay := h.minDelay + rand.N(h.maxDelay-h.minDelay)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errRequestCancelled
	}
}
