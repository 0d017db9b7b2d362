// Command backend runs the observable HTTP service: application routes plus
// /health, /ready, /live, /metrics and /metrics-json.
//
// Configuration is read from the environment, see pkg/config.
package main

import (
	"go.uber.org/fx"

	"github.com/JailtonJunior94/observable-service/pkg/handlers"
	"github.com/JailtonJunior94/observable-service/pkg/health"
)

func main() {
	fx.New(appOptions()).Run()
}

func appOptions() fx.Option {
	return fx.Options(
		// Infrastructure
		fx.Provide(
			provideConfig,
			provideObservability,
			provideStore,
			provideRegistry,
			provideRecorder,
		),

		// Health
		fx.Provide(
			provideEvaluator,
			health.NewFaultSet,
		),

		// Application
		fx.Provide(
			provideSimulator,
			provideDataHandler,
			provideLoadTestHandler,
			provideFaultHandler,
			handlers.NewMetricsHandler,
			handlers.NewRoutes,
			provideServer,
		),

		// Hooks stop in reverse order: the scheduler stops before the server.
		fx.Invoke(runServer, runScheduler),
	)
}
