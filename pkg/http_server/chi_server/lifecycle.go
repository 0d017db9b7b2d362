package chiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

// Start listens on the configured address and blocks until ctx is cancelled
// or SIGINT/SIGTERM arrives, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.observability.Logger().Error(ctx, "server failed to start", observability.Error(err))
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.observability.Logger().Info(ctx, "starting HTTP server",
		observability.String("address", listener.Addr().String()),
		observability.String("service", s.config.ServiceName),
		observability.String("version", s.config.ServiceVersion),
		observability.String("environment", s.config.Environment),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-serverErr:
		s.observability.Logger().Error(ctx, "server stopped unexpectedly", observability.Error(err))
		return err
	case <-ctx.Done():
		s.observability.Logger().Info(ctx, "context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.observability.Logger().Info(ctx, "signal received, initiating shutdown",
			observability.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	return s.Shutdown(shutdownCtx)
}

// Shutdown drains in-flight requests, then shuts down the registered
// components and the observability provider. Only the first call has effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		logger := s.observability.Logger()
		logger.Info(ctx, "initiating graceful shutdown")

		if err := s.httpServer.Shutdown(ctx); err != nil {
			logger.Error(ctx, "error shutting down HTTP server", observability.Error(err))
			shutdownErr = err
		}

		for _, closer := range s.closers {
			if err := closer.Shutdown(ctx); err != nil {
				logger.Error(ctx, "error shutting down component", observability.Error(err))
				shutdownErr = errors.Join(shutdownErr, err)
			}
		}

		// The provider goes last so the entries above are still exported.
		if provider, ok := s.observability.(common.Shutdowner); ok {
			logger.Info(ctx, "graceful shutdown completed")
			if err := provider.Shutdown(ctx); err != nil {
				shutdownErr = errors.Join(shutdownErr, err)
			}
			return
		}

		logger.Info(ctx, "graceful shutdown completed")
	})

	return shutdownErr
}
