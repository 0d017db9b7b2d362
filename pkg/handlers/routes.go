package handlers

import (
	"net/http"

	chiserver "github.com/JailtonJunior94/observable-service/pkg/http_server/chi_server"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/go-chi/chi/v5"
)

// Routes registers every application route on the server.
type Routes struct {
	data     *DataHandler
	metrics  *MetricsHandler
	loadTest *LoadTestHandler
	faults   *FaultHandler
	logger   observability.Logger
}

func NewRoutes(
	data *DataHandler,
	metrics *MetricsHandler,
	loadTest *LoadTestHandler,
	faults *FaultHandler,
	logger observability.Logger,
) *Routes {
	return &Routes{
		data:     data,
		metrics:  metrics,
		loadTest: loadTest,
		faults:   faults,
		logger:   logger,
	}
}

// Register implements chiserver.Router.
func (rt *Routes) Register(r chi.Router) {
	handle := func(fn chiserver.HandlerFunc) func(w http.ResponseWriter, r *http.Request) {
		return chiserver.Handle(rt.logger, fn)
	}

	r.Get("/api/data", handle(rt.data.GetData))
	r.Get("/metrics-json", handle(rt.metrics.GetMetricsJSON))

	r.Get("/load-test", handle(rt.loadTest.Call))
	r.Post("/load-test", handle(rt.loadTest.Call))
	r.Post("/load-test/batch", handle(rt.loadTest.Batch))

	r.Route("/admin/faults", func(r chi.Router) {
		r.Get("/", handle(rt.faults.List))
		r.Put("/{name}", handle(rt.faults.Set))
		r.Delete("/{name}", handle(rt.faults.Clear))
	})
}
