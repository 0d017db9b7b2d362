package chiserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/health"
	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
	"github.com/JailtonJunior94/observable-service/pkg/metrics"
)

// Option is a function that configures a Server.
type Option func(*Server)

// WithConfig sets the full configuration for the server.
func WithConfig(cfg common.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithPort sets the server port.
func WithPort(port string) Option {
	return func(s *Server) {
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		s.config.Address = port
	}
}

// WithRequestTimeout bounds handler execution.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.config.RequestTimeout = timeout
	}
}

// WithRouteTimeout sets a timeout for a specific route.
func WithRouteTimeout(path string, timeout time.Duration) Option {
	return func(s *Server) {
		s.routeTimeouts[path] = timeout
	}
}

// WithBodyLimit sets the maximum request body size in bytes.
func WithBodyLimit(limit int) Option {
	return func(s *Server) {
		s.config.BodyLimit = limit
	}
}

// WithMaxInFlight caps concurrent requests.
func WithMaxInFlight(n int) Option {
	return func(s *Server) {
		s.config.MaxInFlight = n
	}
}

// WithCORS enables CORS with the specified origins.
func WithCORS(origins string) Option {
	return func(s *Server) {
		s.config.EnableCORS = true
		s.config.CORSOrigins = origins
	}
}

// WithMetrics records every request and serves /metrics from the recorder's registry.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Server) {
		s.config.EnableMetrics = true
		s.recorder = recorder
	}
}

// WithHealthEvaluator serves /health, /ready and /live from evaluator.
func WithHealthEvaluator(evaluator *health.Evaluator) Option {
	return func(s *Server) {
		s.config.EnableHealthChecks = true
		s.evaluator = evaluator
	}
}

// WithMiddleware adds a custom middleware after the built-in ones.
func WithMiddleware(middleware func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.customMiddlewares = append(s.customMiddlewares, middleware)
	}
}

// WithShutdown registers components shut down after the HTTP server, in order.
func WithShutdown(closers ...common.Shutdowner) Option {
	return func(s *Server) {
		s.closers = append(s.closers, closers...)
	}
}

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(s *Server) {
		s.config.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(s *Server) {
		s.config.ServiceVersion = version
	}
}

// WithEnvironment sets the environment.
func WithEnvironment(env string) Option {
	return func(s *Server) {
		s.config.Environment = env
	}
}
