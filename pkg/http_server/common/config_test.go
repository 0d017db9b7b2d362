package common

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Address != ":6000" {
		t.Errorf("expected address :6000, got %s", cfg.Address)
	}

	if cfg.RequestTimeout >= cfg.WriteTimeout {
		t.Errorf("expected request timeout below write timeout, got %v >= %v", cfg.RequestTimeout, cfg.WriteTimeout)
	}

	if cfg.MaxInFlight != 1000 {
		t.Errorf("expected MaxInFlight 1000, got %d", cfg.MaxInFlight)
	}

	if !cfg.EnableHealthChecks {
		t.Error("expected EnableHealthChecks to be true")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	scenarios := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty address", mutate: func(c *Config) { c.Address = " " }, wantErr: "address is required"},
		{name: "empty service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: "service name is required"},
		{name: "empty version", mutate: func(c *Config) { c.ServiceVersion = "" }, wantErr: "service version is required"},
		{name: "empty environment", mutate: func(c *Config) { c.Environment = "\t" }, wantErr: "environment is required"},
		{name: "zero read timeout", mutate: func(c *Config) { c.ReadTimeout = 0 }, wantErr: "read timeout must be positive"},
		{name: "negative shutdown timeout", mutate: func(c *Config) { c.ShutdownTimeout = -time.Second }, wantErr: "shutdown timeout must be positive"},
		{
			name:    "request timeout above write timeout",
			mutate:  func(c *Config) { c.RequestTimeout = time.Minute },
			wantErr: "must be below write timeout",
		},
		{name: "zero body limit", mutate: func(c *Config) { c.BodyLimit = 0 }, wantErr: "body limit must be positive"},
		{name: "zero max in flight", mutate: func(c *Config) { c.MaxInFlight = 0 }, wantErr: "max in-flight requests must be positive"},
		{
			name:    "cors without origins",
			mutate:  func(c *Config) { c.EnableCORS = true },
			wantErr: "CORS origins are required",
		},
		{
			name: "cors wildcard mixed with origins",
			mutate: func(c *Config) {
				c.EnableCORS = true
				c.CORSOrigins = "*,https://example.com"
			},
			wantErr: "wildcard",
		},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			cfg := DefaultConfig()
			scenario.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", scenario.wantErr)
			}
			if !strings.Contains(err.Error(), scenario.wantErr) {
				t.Errorf("expected error containing %q, got %q", scenario.wantErr, err.Error())
			}
		})
	}
}

func TestConfigIsProduction(t *testing.T) {
	for env, want := range map[string]bool{
		"production":  true,
		"PROD":        true,
		"development": false,
		"staging":     false,
	} {
		cfg := DefaultConfig()
		cfg.Environment = env
		if got := cfg.IsProduction(); got != want {
			t.Errorf("IsProduction(%q) = %v, want %v", env, got, want)
		}
	}
}
