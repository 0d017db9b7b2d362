// Package common holds the HTTP plumbing shared by the server and the
// application handlers: configuration, problem responses, response headers
// and a status-recording response writer.
package common

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the HTTP server configuration.
type Config struct {
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// RequestTimeout bounds handler execution. It must stay below WriteTimeout
	// so the timeout response can still be written.
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	BodyLimit int
	// MaxInFlight caps concurrent requests; excess requests get 429.
	MaxInFlight int

	ServiceName    string
	ServiceVersion string
	Environment    string

	CORSOrigins string
	EnableCORS  bool

	EnableMetrics      bool
	EnableHealthChecks bool
}

// DefaultConfig returns the configuration used when no option overrides it.
func DefaultConfig() Config {
	return Config{
		Address:            ":6000",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        120 * time.Second,
		RequestTimeout:     20 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		BodyLimit:          1024 * 1024,
		MaxInFlight:        1000,
		ServiceName:        "observable-service",
		ServiceVersion:     "unknown",
		Environment:        "development",
		EnableHealthChecks: true,
	}
}

// IsProduction reports whether the server runs in production.
func (c Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return errors.New("address is required")
	}

	if strings.TrimSpace(c.ServiceName) == "" {
		return errors.New("service name is required")
	}

	if strings.TrimSpace(c.ServiceVersion) == "" {
		return errors.New("service version is required")
	}

	if strings.TrimSpace(c.Environment) == "" {
		return errors.New("environment is required")
	}

	for name, d := range map[string]time.Duration{
		"read timeout":     c.ReadTimeout,
		"write timeout":    c.WriteTimeout,
		"idle timeout":     c.IdleTimeout,
		"request timeout":  c.RequestTimeout,
		"shutdown timeout": c.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}

	if c.RequestTimeout >= c.WriteTimeout {
		return fmt.Errorf("request timeout (%v) must be below write timeout (%v)", c.RequestTimeout, c.WriteTimeout)
	}

	if c.BodyLimit <= 0 {
		return fmt.Errorf("body limit must be positive, got %d", c.BodyLimit)
	}

	if c.MaxInFlight <= 0 {
		return fmt.Errorf("max in-flight requests must be positive, got %d", c.MaxInFlight)
	}

	if c.EnableCORS {
		if strings.TrimSpace(c.CORSOrigins) == "" {
			return errors.New("CORS origins are required when CORS is enabled")
		}
		if _, err := ParseOrigins(c.CORSOrigins); err != nil {
			return err
		}
	}

	return nil
}
