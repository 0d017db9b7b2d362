// Package chiserver is the HTTP reporting surface of the service: a chi
// router with the request middlewares, the health and metrics endpoints and
// graceful shutdown.
package chiserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/health"
	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
	"github.com/JailtonJunior94/observable-service/pkg/metrics"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server represents an HTTP server using Chi router.
type Server struct {
	router            chi.Router
	httpServer        *http.Server
	config            common.Config
	observability     observability.Observability
	evaluator         *health.Evaluator
	recorder          *metrics.Recorder
	routeTimeouts     map[string]time.Duration
	customMiddlewares []func(http.Handler) http.Handler
	closers           []common.Shutdowner
	startTime         time.Time
	shutdownOnce      sync.Once
}

// New creates a new HTTP server with the given options.
func New(o11y observability.Observability, opts ...Option) (*Server, error) {
	srv := &Server{
		config:        common.DefaultConfig(),
		observability: o11y,
		routeTimeouts: make(map[string]time.Duration),
		startTime:     time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}
	if srv.recorder != nil {
		srv.config.EnableMetrics = true
	}

	if err := srv.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if srv.config.EnableMetrics && srv.recorder == nil {
		return nil, fmt.Errorf("invalid server configuration: metrics enabled without a recorder")
	}
	if srv.recorder != nil {
		srv.startTime = srv.recorder.Registry().StartTime()
	}

	srv.router = chi.NewRouter()
	srv.registerMiddlewares()
	srv.registerSupportEndpoints()

	srv.httpServer = &http.Server{
		Addr:         srv.config.Address,
		Handler:      srv.router,
		ReadTimeout:  srv.config.ReadTimeout,
		WriteTimeout: srv.config.WriteTimeout,
		IdleTimeout:  srv.config.IdleTimeout,
	}

	return srv, nil
}

// RegisterRouters registers route handlers with the server.
func (s *Server) RegisterRouters(routers ...Router) *Server {
	for _, router := range routers {
		router.Register(s.router)
		s.observability.Logger().Debug(context.Background(), "router registered",
			observability.String("router", fmt.Sprintf("%T", router)))
	}

	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Config returns the validated configuration.
func (s *Server) Config() common.Config {
	return s.config
}

// registerMiddlewares registers all middlewares in the correct order. Metrics
// wrap recover so a recovered panic is counted as the 500 it produced.
func (s *Server) registerMiddlewares() {
	s.router.Use(requestIDMiddleware())
	s.router.Use(tracingMiddleware(s.observability))

	if s.recorder != nil {
		s.router.Use(metricsMiddleware(s.recorder, s.observability))
	}

	s.router.Use(recoverMiddleware(s.observability))
	s.router.Use(bodyLimitMiddleware(int64(s.config.BodyLimit)))
	s.router.Use(timeoutMiddleware(s.config.RequestTimeout, s.routeTimeouts))
	s.router.Use(securityHeadersMiddleware(s.config.IsProduction()))

	if s.config.EnableCORS {
		s.router.Use(corsMiddleware(s.config.CORSOrigins))
		s.observability.Logger().Info(context.Background(), "CORS enabled",
			observability.String("origins", s.config.CORSOrigins))
	}

	s.router.Use(middleware.Throttle(s.config.MaxInFlight))

	for _, mw := range s.customMiddlewares {
		s.router.Use(mw)
	}
}

// registerSupportEndpoints registers health checks and metrics endpoints.
func (s *Server) registerSupportEndpoints() {
	if s.config.EnableHealthChecks {
		evaluator := s.evaluator
		if evaluator == nil {
			evaluator = health.NewEvaluator(nil, s.observability.Logger())
		}

		s.router.Get("/health", healthHandler(s.config, evaluator, s.startTime))
		s.router.Get("/ready", readyHandler(evaluator))
		s.router.Get("/live", liveHandler())
		s.observability.Logger().Info(context.Background(), "health check endpoints enabled")
	}

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", s.recorder.Registry().Handler())
		s.observability.Logger().Info(context.Background(), "metrics endpoint enabled")
	}
}
