package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
	"github.com/JailtonJunior94/observable-service/pkg/loadsim"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

const (
	defaultBatchCalls       = 100
	defaultBatchConcurrency = 10
	maxBatchConcurrency     = 100
)

// LoadTestResponse is the body of a simulated call.
type LoadTestResponse struct {
	Status    string          `json:"status,omitempty"`
	Error     string          `json:"error,omitempty"`
	Outcome   loadsim.Outcome `json:"outcome"`
	Delay     float64         `json:"delay"`
	Timestamp time.Time       `json:"timestamp"`
}

// BatchRequest is the body of POST /load-test/batch.
type BatchRequest struct {
	loadsim.ProfileRequest
	Calls       int `json:"calls"`
	Concurrency int `json:"concurrency"`
}

// BatchResponse summarises a batch run.
type BatchResponse struct {
	loadsim.Tally
	ErrorRate float64 `json:"error_rate"`
	ElapsedMS int64   `json:"elapsed_ms"`
}

// LoadTestHandler exposes the load simulator over HTTP.
type LoadTestHandler struct {
	simulator          *loadsim.Simulator
	o11y               observability.Observability
	defaultConcurrency int
}

// LoadTestOption configures a LoadTestHandler.
type LoadTestOption func(*LoadTestHandler)

// WithBatchConcurrency sets the concurrency of batches that do not ask for one.
func WithBatchConcurrency(n int) LoadTestOption {
	return func(h *LoadTestHandler) {
		if n > 0 && n <= maxBatchConcurrency {
			h.defaultConcurrency = n
		}
	}
}

func NewLoadTestHandler(simulator *loadsim.Simulator, o11y observability.Observability, opts ...LoadTestOption) *LoadTestHandler {
	h := &LoadTestHandler{
		simulator:          simulator,
		o11y:               o11y,
		defaultConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Call handles GET and POST /load-test. GET reads the profile from the query
// string, POST from a JSON body. The response status is the simulated one.
func (h *LoadTestHandler) Call(w http.ResponseWriter, r *http.Request) error {
	var (
		profile loadsim.Profile
		err     error
	)
	if r.Method == http.MethodPost {
		profile, err = loadsim.DecodeJSON(r.Body)
	} else {
		profile, err = loadsim.ParseQuery(r.URL.Query())
	}
	if err == nil {
		err = profile.Validate(h.simulator.MaxDelay())
	}
	if err != nil {
		return badRequest(err)
	}

	ctx, span := h.o11y.Tracer().Start(r.Context(), "loadsim.call",
		observability.WithAttributes(
			observability.Float64("loadsim.error_rate", profile.ErrorRate),
			observability.Float64("loadsim.client_error_rate", profile.ClientErrorRate),
			observability.Int64("loadsim.max_delay_ms", profile.MaxDelay.Milliseconds()),
		),
	)
	defer span.End()

	result, err := h.simulator.Call(ctx, profile)
	if err != nil {
		return h.mapError(ctx, err)
	}
	span.SetAttributes(observability.String("loadsim.outcome", string(result.Outcome)))

	resp := LoadTestResponse{
		Outcome:   result.Outcome,
		Delay:     result.Delay.Seconds(),
		Timestamp: time.Now().UTC(),
	}
	switch result.Outcome {
	case loadsim.OutcomeClientError:
		resp.Error = "Simulated client error"
	case loadsim.OutcomeServerError:
		resp.Error = "Simulated server error"
	default:
		resp.Status = "success"
	}

	common.WriteJSON(w, result.Outcome.StatusCode(), resp)
	return nil
}

// Batch handles POST /load-test/batch: it runs many simulated calls in
// process and returns the tally. Calls are not individual HTTP requests and
// only show up in loadsim_calls_total.
func (h *LoadTestHandler) Batch(w http.ResponseWriter, r *http.Request) error {
	req := BatchRequest{Calls: defaultBatchCalls, Concurrency: h.defaultConcurrency}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return badRequest(fmt.Errorf("malformed JSON body: %w", err))
	}

	if req.Concurrency <= 0 || req.Concurrency > maxBatchConcurrency {
		return badRequest(fmt.Errorf("concurrency must be between 1 and %d, got %d", maxBatchConcurrency, req.Concurrency))
	}

	profile, err := req.Apply(loadsim.DefaultProfile())
	if err != nil {
		return badRequest(err)
	}
	tally, err := h.simulator.Run(r.Context(), profile, req.Calls, req.Concurrency)
	if err != nil {
		return h.mapError(r.Context(), err)
	}

	h.o11y.Logger().Info(r.Context(), "load simulation batch completed",
		observability.Int("calls", tally.Calls),
		observability.Int("client_errors", tally.ClientErrors),
		observability.Int("server_errors", tally.ServerErrors),
		observability.Duration("elapsed", tally.Elapsed),
	)

	common.WriteJSON(w, http.StatusOK, BatchResponse{
		Tally:     tally,
		ErrorRate: tally.ErrorRate(),
		ElapsedMS: tally.Elapsed.Milliseconds(),
	})
	return nil
}

func (h *LoadTestHandler) mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, loadsim.ErrInvalidProfile):
		return badRequest(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.o11y.Logger().Warn(ctx, "load simulation interrupted", observability.Error(err))
		return errRequestCancelled
	default:
		return err
	}
}
