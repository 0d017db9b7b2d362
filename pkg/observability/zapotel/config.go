package zapotel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

// Config holds the configuration of the zap/OpenTelemetry provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       observability.LogLevel

	// OTLPEndpoint enables OTLP gRPC span export when not empty.
	OTLPEndpoint string
	Insecure     bool

	// TraceSampleRate is the parent-based ratio sampler fraction, 0.0 to 1.0.
	TraceSampleRate float64
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:     serviceName,
		ServiceVersion:  "unknown",
		Environment:     "development",
		LogLevel:        observability.LogLevelInfo,
		TraceSampleRate: 1.0,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return errors.New("service name is required")
	}

	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("trace sample rate must be between 0 and 1, got %v", c.TraceSampleRate)
	}

	if c.Insecure && c.OTLPEndpoint != "" && isProduction(c.Environment) {
		return errors.New("insecure OTLP connections are not allowed in production environment")
	}

	return nil
}

func isProduction(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "production" || env == "prod"
}
