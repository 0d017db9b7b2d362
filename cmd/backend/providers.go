package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/fx"

	"github.com/JailtonJunior94/observable-service/pkg/config"
	"github.com/JailtonJunior94/observable-service/pkg/handlers"
	"github.com/JailtonJunior94/observable-service/pkg/health"
	chiserver "github.com/JailtonJunior94/observable-service/pkg/http_server/chi_server"
	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
	"github.com/JailtonJunior94/observable-service/pkg/loadsim"
	"github.com/JailtonJunior94/observable-service/pkg/metrics"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/JailtonJunior94/observable-service/pkg/observability/zapotel"
	"github.com/JailtonJunior94/observable-service/pkg/scheduler"
	"github.com/JailtonJunior94/observable-service/pkg/store"
)

func provideConfig() (config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func provideObservability(cfg config.Config) (observability.Observability, observability.Logger, error) {
	o11yConfig := zapotel.DefaultConfig(cfg.ServiceName)
	o11yConfig.ServiceVersion = cfg.ServiceVersion
	o11yConfig.Environment = cfg.Environment
	o11yConfig.LogLevel = observability.ParseLogLevel(cfg.LogLevel)
	o11yConfig.OTLPEndpoint = cfg.OTLPEndpoint
	o11yConfig.Insecure = cfg.OTLPInsecure

	provider, err := zapotel.NewProvider(context.Background(), o11yConfig)
	if err != nil {
		return nil, nil, err
	}
	return provider, provider.Logger(), nil
}

func provideStore(cfg config.Config, logger observability.Logger) store.Store {
	return store.Connect(context.Background(), store.ConnectConfig{
		Redis:   store.RedisConfig{Addr: cfg.RedisAddr()},
		Timeout: cfg.RedisConnectTimeout,
	}, logger)
}

func provideRegistry(s store.Store, logger observability.Logger) (*metrics.Registry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := time.Now()
	startTime, err := store.InitStartTime(ctx, s, now)
	if err != nil {
		logger.Warn(ctx, "failed to read shared start time, using local start time", observability.Error(err))
		startTime = now
	}

	return metrics.New(
		metrics.WithStartTime(startTime),
		metrics.WithStorage(s.Name()),
	)
}

func provideRecorder(registry *metrics.Registry, s store.Store, logger observability.Logger) *metrics.Recorder {
	return metrics.NewRecorder(registry, s, logger)
}

func provideEvaluator(
	cfg config.Config,
	registry *metrics.Registry,
	s store.Store,
	o11y observability.Observability,
) (*health.Evaluator, error) {
	evaluator := health.NewEvaluator(registry, o11y.Logger(),
		health.WithTimeout(cfg.HealthCheckTimeout),
		health.WithTracer(o11y.Tracer()),
	)

	if err := evaluator.Register(health.CacheCheck(s, cfg.CacheCritical)); err != nil {
		return nil, err
	}
	if cfg.MemoryLimitMB > 0 {
		if err := evaluator.Register(health.MemoryCheck(cfg.MemoryLimitMB)); err != nil {
			return nil, err
		}
	}
	if cfg.DiskUsageLimit > 0 {
		if err := evaluator.Register(health.DiskCheck(cfg.DiskPath, cfg.DiskUsageLimit)); err != nil {
			return nil, err
		}
	}
	return evaluator, nil
}

// healthProbeJob refreshes dependency_up and health_check_total between
// scrapes even when nobody calls /health.
func healthProbeJob(evaluator *health.Evaluator, interval time.Duration) scheduler.Job {
	return scheduler.NewFuncJob("health-probe", fmt.Sprintf("@every %s", interval), func(ctx context.Context) error {
		evaluator.CheckHealth(ctx)
		return nil
	})
}

func runScheduler(lc fx.Lifecycle, cfg config.Config, evaluator *health.Evaluator, logger observability.Logger) error {
	if cfg.HealthProbeInterval <= 0 {
		return nil
	}

	jobs := scheduler.New(logger, scheduler.WithJobTimeout(cfg.HealthProbeInterval))
	if err := jobs.Register(healthProbeJob(evaluator, cfg.HealthProbeInterval)); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: jobs.Start,
		OnStop:  jobs.Shutdown,
	})
	return nil
}

func provideSimulator(cfg config.Config, registry *metrics.Registry) *loadsim.Simulator {
	return loadsim.NewSimulator(registry, loadsim.WithMaxDelay(cfg.LoadSimMaxDelay))
}

func provideDataHandler(cfg config.Config) *handlers.DataHandler {
	return handlers.NewDataHandler(cfg.Environment, cfg.APIDataDelay)
}

func provideLoadTestHandler(cfg config.Config, simulator *loadsim.Simulator, o11y observability.Observability) *handlers.LoadTestHandler {
	return handlers.NewLoadTestHandler(simulator, o11y, handlers.WithBatchConcurrency(cfg.Workers))
}

func provideFaultHandler(faults *health.FaultSet, logger observability.Logger) *handlers.FaultHandler {
	return handlers.NewFaultHandler(faults, logger)
}

func serverConfig(cfg config.Config) common.Config {
	httpConfig := common.DefaultConfig()
	httpConfig.Address = cfg.Address()
	httpConfig.MaxInFlight = cfg.MaxInFlight
	httpConfig.ServiceName = cfg.ServiceName
	httpConfig.ServiceVersion = cfg.ServiceVersion
	httpConfig.Environment = cfg.Environment
	httpConfig.CORSOrigins = cfg.CORSOrigins
	httpConfig.EnableCORS = cfg.CORSOrigins != ""
	return httpConfig
}

func provideServer(
	cfg config.Config,
	o11y observability.Observability,
	recorder *metrics.Recorder,
	evaluator *health.Evaluator,
	routes *handlers.Routes,
	s store.Store,
) (*chiserver.Server, error) {
	srv, err := chiserver.New(o11y,
		chiserver.WithConfig(serverConfig(cfg)),
		chiserver.WithMetrics(recorder),
		chiserver.WithHealthEvaluator(evaluator),
		chiserver.WithShutdown(common.ShutdownFunc(func(context.Context) error {
			return s.Close()
		})),
	)
	if err != nil {
		return nil, err
	}

	srv.RegisterRouters(routes)
	return srv, nil
}

func runServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, srv *chiserver.Server, logger observability.Logger) {
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listener, err := net.Listen("tcp", srv.Config().Address)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Config().Address, err)
			}

			var serveCtx context.Context
			serveCtx, cancel = context.WithCancel(context.Background())

			go func() {
				if err := srv.Serve(serveCtx, listener); err != nil {
					logger.Error(serveCtx, "server exited with error", observability.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
}
