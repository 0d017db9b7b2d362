package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/health"
	chiserver "github.com/JailtonJunior94/observable-service/pkg/http_server/chi_server"
	"github.com/JailtonJunior94/observable-service/pkg/loadsim"
	"github.com/JailtonJunior94/observable-service/pkg/metrics"
	"github.com/JailtonJunior94/observable-service/pkg/observability/fake"
	"github.com/JailtonJunior94/observable-service/pkg/store"
	"github.com/stretchr/testify/suite"
)

type HandlersSuite struct {
	suite.Suite
	provider  *fake.Provider
	registry  *metrics.Registry
	evaluator *health.Evaluator
	handler   http.Handler
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.provider = fake.NewProvider()

	registry, err := metrics.New(metrics.WithoutRuntimeCollectors(), metrics.WithWorkerID("test-worker"))
	s.Require().NoError(err)
	s.registry = registry

	shared := store.NewMemory()
	recorder := metrics.NewRecorder(registry, shared, s.provider.Logger())
	s.evaluator = health.NewEvaluator(registry, s.provider.Logger())
	s.Require().NoError(s.evaluator.Register(health.CacheCheck(shared, false)))

	simulator := loadsim.NewSimulator(registry, loadsim.WithSeed(99), loadsim.WithMaxDelay(time.Second))
	routes := NewRoutes(
		NewDataHandler("test", false),
		NewMetricsHandler(recorder),
		NewLoadTestHandler(simulator, s.provider),
		NewFaultHandler(health.NewFaultSet(s.evaluator), s.provider.Logger()),
		s.provider.Logger(),
	)

	server, err := chiserver.New(s.provider,
		chiserver.WithMetrics(recorder),
		chiserver.WithHealthEvaluator(s.evaluator),
	)
	s.Require().NoError(err)
	s.handler = server.RegisterRouters(routes).Handler()
}

func (s *HandlersSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *HandlersSuite) TestGetData() {
	rec := s.do(http.MethodGet, "/api/data", "")

	s.Equal(http.StatusOK, rec.Code)
	var body DataResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal("Hello from the backend!", body.Message)
	s.GreaterOrEqual(body.RandomNumber, 1)
	s.LessOrEqual(body.RandomNumber, 1000)
	s.Equal("chi", body.ServerInfo.Framework)
	s.Equal("test", body.ServerInfo.Environment)
	s.NotEmpty(body.ServerInfo.GoVersion)
}

func (s *HandlersSuite) TestGetDataWithDelay() {
	h := NewDataHandler("test", true)
	rec := httptest.NewRecorder()

	start := time.Now()
	err := h.GetData(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	s.Require().NoError(err)
	s.GreaterOrEqual(time.Since(start), 10*time.Millisecond)
}

func (s *HandlersSuite) TestLoadTest() {
	scenarios := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode int
		wantBody string
	}{
		{
			name:     "forced success",
			method:   http.MethodGet,
			target:   "/load-test?min_delay_ms=0&max_delay_ms=0&error_rate=0&client_error_rate=0",
			wantCode: http.StatusOK,
			wantBody: `"status":"success"`,
		},
		{
			name:     "forced server error",
			method:   http.MethodGet,
			target:   "/load-test?max_delay_ms=0&min_delay_ms=0&error_rate=1&client_error_rate=0",
			wantCode: http.StatusInternalServerError,
			wantBody: "Simulated server error",
		},
		{
			name:     "forced client error from json",
			method:   http.MethodPost,
			target:   "/load-test",
			body:     `{"min_delay_ms":0,"max_delay_ms":0,"error_rate":0,"client_error_rate":1}`,
			wantCode: http.StatusBadRequest,
			wantBody: "Simulated client error",
		},
		{
			name:     "rate out of range",
			method:   http.MethodGet,
			target:   "/load-test?error_rate=2",
			wantCode: http.StatusBadRequest,
			wantBody: "error_rate must be between 0 and 1",
		},
		{
			name:     "NaN rate",
			method:   http.MethodGet,
			target:   "/load-test?error_rate=NaN",
			wantCode: http.StatusBadRequest,
			wantBody: "error_rate must be between 0 and 1",
		},
		{
			name:     "delay overflows duration",
			method:   http.MethodGet,
			target:   "/load-test?max_delay_ms=9223372036854775807",
			wantCode: http.StatusBadRequest,
			wantBody: "max_delay_ms out of range",
		},
		{
			name:     "delay above cap",
			method:   http.MethodGet,
			target:   "/load-test?max_delay_ms=60000",
			wantCode: http.StatusBadRequest,
			wantBody: "max_delay_ms must not exceed 1000",
		},
		{
			name:     "malformed number",
			method:   http.MethodGet,
			target:   "/load-test?min_delay_ms=abc",
			wantCode: http.StatusBadRequest,
			wantBody: "min_delay_ms must be an integer",
		},
		{
			name:     "malformed json",
			method:   http.MethodPost,
			target:   "/load-test",
			body:     `{"error_rate":`,
			wantCode: http.StatusBadRequest,
			wantBody: "malformed JSON body",
		},
	}

	for _, scenario := range scenarios {
		s.T().Run(scenario.name, func(t *testing.T) {
			rec := s.do(scenario.method, scenario.target, scenario.body)

			s.Equal(scenario.wantCode, rec.Code)
			s.Contains(rec.Body.String(), scenario.wantBody)
		})
	}

	s.Len(s.provider.FakeTracer().SpansNamed("loadsim.call"), 3)
}

func (s *HandlersSuite) TestLoadTestBatch() {
	rec := s.do(http.MethodPost, "/load-test/batch",
		`{"calls":50,"concurrency":5,"min_delay_ms":0,"max_delay_ms":0,"error_rate":0,"client_error_rate":1}`)

	s.Equal(http.StatusOK, rec.Code)
	var body BatchResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal(50, body.Calls)
	s.Equal(50, body.ClientErrors)
	s.Equal(1.0, body.ErrorRate)

	recorded, err := s.registry.Value(metrics.LoadSimCallsTotal, metrics.Labels{"outcome": "client_error"})
	s.Require().NoError(err)
	s.Equal(50.0, recorded)
}

func (s *HandlersSuite) TestLoadTestBatchValidation() {
	for body, want := range map[string]string{
		`{"calls":0}`:                                      "calls must be between 1 and 10000",
		`{"calls":20000}`:                                  "calls must be between 1 and 10000",
		`{"calls":10,"concurrency":1000}`:                  "concurrency must be between 1 and 100",
		`{"calls":10,"speed":"fast"}`:                      "malformed JSON body",
		`{"calls":10,"min_delay_ms":-9223372036854775807}`: "min_delay_ms out of range",
	} {
		rec := s.do(http.MethodPost, "/load-test/batch", body)
		s.Equal(http.StatusBadRequest, rec.Code, body)
		s.Contains(rec.Body.String(), want, body)
	}
}

func (s *HandlersSuite) TestMetricsJSON() {
	s.do(http.MethodGet, "/api/data", "")
	s.do(http.MethodGet, "/load-test?min_delay_ms=0&max_delay_ms=0&error_rate=1&client_error_rate=0", "")

	rec := s.do(http.MethodGet, "/metrics-json", "")

	s.Equal(http.StatusOK, rec.Code)
	var summary metrics.Summary
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&summary))
	s.EqualValues(2, summary.RequestsTotal)
	s.EqualValues(1, summary.ErrorsTotal)
	s.EqualValues(1, summary.ErrorsByStatus["500"])
	s.EqualValues(1, summary.EndpointMetrics["GET /api/data"])
	s.Equal("in-memory", summary.StorageType)
	s.Equal("test-worker", summary.WorkerID)
}

func (s *HandlersSuite) TestFaults() {
	set := s.do(http.MethodPut, "/admin/faults/payments?critical=true&message=upstream+down", "")
	s.Equal(http.StatusOK, set.Code)
	s.Contains(set.Body.String(), `"name":"payments"`)

	healthRec := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusServiceUnavailable, healthRec.Code)
	s.Contains(healthRec.Body.String(), `"payments":{"ok":false`)
	s.Contains(healthRec.Body.String(), "upstream down")

	list := s.do(http.MethodGet, "/admin/faults", "")
	s.Equal(http.StatusOK, list.Code)
	s.Contains(list.Body.String(), "payments")

	s.Equal(http.StatusConflict, s.do(http.MethodPut, "/admin/faults/cache", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPut, "/admin/faults/x?critical=maybe", "").Code)

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/admin/faults/payments", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/admin/faults/payments", "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health", "").Code)
}

func (s *HandlersSuite) TestClearedFaultLeavesMetrics() {
	s.Equal(http.StatusOK, s.do(http.MethodPut, "/admin/faults/db?critical=true", "").Code)
	s.Equal(http.StatusServiceUnavailable, s.do(http.MethodGet, "/health", "").Code)

	scrape := s.do(http.MethodGet, "/metrics", "")
	s.Contains(scrape.Body.String(), `dependency_up{critical="true",dependency="db"} 0`)

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/admin/faults/db", "").Code)

	scrape = s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, scrape.Code)
	s.NotContains(scrape.Body.String(), `dependency="db"`)
	s.Contains(scrape.Body.String(), `dependency_up{critical="false",dependency="cache"} 1`)
}

func (s *HandlersSuite) TestNonCriticalFaultDegrades() {
	s.Equal(http.StatusOK, s.do(http.MethodPut, "/admin/faults/search?critical=false", "").Code)

	rec := s.do(http.MethodGet, "/health", "")

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"degraded"`)
}

func TestWithBatchConcurrency(t *testing.T) {
	h := NewLoadTestHandler(nil, fake.NewProvider(), WithBatchConcurrency(4))
	if h.defaultConcurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", h.defaultConcurrency)
	}

	h = NewLoadTestHandler(nil, fake.NewProvider(), WithBatchConcurrency(maxBatchConcurrency+1))
	if h.defaultConcurrency != defaultBatchConcurrency {
		t.Errorf("out of range concurrency must be ignored, got %d", h.defaultConcurrency)
	}
}
