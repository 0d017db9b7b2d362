package main

import (
	"context"
	"testing"
	"time"

	"go.uber.org/fx"

	"github.com/JailtonJunior94/observable-service/pkg/config"
	"github.com/JailtonJunior94/observable-service/pkg/health"
	"github.com/JailtonJunior94/observable-service/pkg/metrics"
	"github.com/JailtonJunior94/observable-service/pkg/observability/noop"
	"github.com/JailtonJunior94/observable-service/pkg/store"
)

func TestAppOptions_DependencyGraph(t *testing.T) {
	if err := fx.ValidateApp(appOptions()); err != nil {
		t.Fatalf("invalid dependency graph: %v", err)
	}
}

func TestServerConfig(t *testing.T) {
	cfg := config.Config{
		Port:           "7000",
		ServiceName:    "svc",
		ServiceVersion: "2.0.0",
		Environment:    "production",
		MaxInFlight:    50,
		CORSOrigins:    "https://example.com",
	}

	httpConfig := serverConfig(cfg)

	if httpConfig.Address != ":7000" {
		t.Errorf("expected :7000, got %s", httpConfig.Address)
	}
	if httpConfig.MaxInFlight != 50 {
		t.Errorf("expected max in flight 50, got %d", httpConfig.MaxInFlight)
	}
	if !httpConfig.EnableCORS || httpConfig.CORSOrigins != "https://example.com" {
		t.Errorf("expected CORS enabled for the configured origin, got %+v", httpConfig)
	}
	if !httpConfig.IsProduction() {
		t.Error("expected production environment")
	}
	if httpConfig.RequestTimeout >= httpConfig.WriteTimeout || httpConfig.RequestTimeout < time.Second {
		t.Errorf("unexpected request timeout %v", httpConfig.RequestTimeout)
	}
	if err := httpConfig.Validate(); err != nil {
		t.Errorf("mapped configuration must be valid: %v", err)
	}
}

func TestHealthProbeJob(t *testing.T) {
	registry, err := metrics.New(metrics.WithoutRuntimeCollectors())
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	evaluator := health.NewEvaluator(registry, nil)

	job := healthProbeJob(evaluator, 15*time.Second)
	if job.Schedule() != "@every 15s" {
		t.Errorf("unexpected schedule %q", job.Schedule())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runs, err := registry.Value(metrics.HealthCheckTotal, metrics.Labels{"status": string(health.StatusHealthy)})
	if err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if runs != 1 {
		t.Errorf("expected one recorded evaluation, got %v", runs)
	}
}

func TestProvideEvaluator_RegistersResourceChecks(t *testing.T) {
	registry, err := metrics.New(metrics.WithoutRuntimeCollectors())
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	cfg := config.Config{
		HealthCheckTimeout: time.Second,
		MemoryLimitMB:      512,
		DiskUsageLimit:     100,
		DiskPath:           t.TempDir(),
	}

	evaluator, err := provideEvaluator(cfg, registry, store.NewMemory(), noop.NewProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{health.CacheCheckName, health.MemoryCheckName, health.DiskCheckName} {
		if !evaluator.Has(name) {
			t.Errorf("expected %s check to be registered", name)
		}
	}

	cfg.DiskUsageLimit = 0
	evaluator, err = provideEvaluator(cfg, registry, store.NewMemory(), noop.NewProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evaluator.Has(health.DiskCheckName) {
		t.Error("disk check must be disabled by a zero limit")
	}
}
