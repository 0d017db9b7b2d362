// Package config loads the service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete runtime configuration of the backend.
// Only non-functional behaviour depends on it; endpoint contracts never do.
type Config struct {
	Port           string
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string
	CORSOrigins    string

	RedisHost           string
	RedisPort           int
	RedisConnectTimeout time.Duration

	// Workers is the default concurrency of batch load simulations.
	Workers     int
	MaxInFlight int

	HealthCheckTimeout  time.Duration
	// HealthProbeInterval runs the checks in the background so dependency
	// gauges stay current between /health calls. Zero disables it.
	HealthProbeInterval time.Duration
	CacheCritical       bool
	MemoryLimitMB       int
	// DiskUsageLimit is the used percentage of DiskPath that degrades
	// health. Zero disables the disk check.
	DiskUsageLimit      float64
	DiskPath            string

	LoadSimMaxDelay time.Duration
	APIDataDelay    bool

	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads the configuration from the environment, applying defaults.
func Load() Config {
	return Config{
		Port:                getEnv("PORT", "6000"),
		ServiceName:         getEnv("SERVICE_NAME", "observable-service"),
		ServiceVersion:      getEnv("SERVICE_VERSION", "1.0.0"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CORSOrigins:         getEnv("CORS_ORIGINS", ""),
		RedisHost:           getEnv("REDIS_HOST", ""),
		RedisPort:           getEnvInt("REDIS_PORT", 6379),
		RedisConnectTimeout: getEnvDuration("REDIS_CONNECT_TIMEOUT", 5*time.Second),
		Workers:             getEnvInt("WORKERS", 4),
		MaxInFlight:         getEnvInt("MAX_IN_FLIGHT", 1000),
		HealthCheckTimeout:  getEnvDuration("HEALTH_CHECK_TIMEOUT", time.Second),
		HealthProbeInterval: getEnvDuration("HEALTH_PROBE_INTERVAL", 15*time.Second),
		CacheCritical:       getEnvBool("CACHE_CRITICAL", false),
		MemoryLimitMB:       getEnvInt("MEMORY_LIMIT_MB", 512),
		DiskUsageLimit:      getEnvFloat("DISK_USAGE_LIMIT_PERCENT", 90),
		DiskPath:            getEnv("DISK_PATH", "/"),
		LoadSimMaxDelay:     getEnvDuration("LOADSIM_MAX_DELAY", 5*time.Second),
		APIDataDelay:        getEnvBool("API_DATA_DELAY", true),
		OTLPEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:        getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}

	if strings.TrimSpace(c.ServiceName) == "" {
		errs = append(errs, errors.New("service name is required"))
	}

	if strings.TrimSpace(c.Environment) == "" {
		errs = append(errs, errors.New("environment is required"))
	}

	if c.RedisHost != "" && (c.RedisPort <= 0 || c.RedisPort > 65535) {
		errs = append(errs, fmt.Errorf("invalid redis port %d", c.RedisPort))
	}

	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}

	if c.MaxInFlight <= 0 {
		errs = append(errs, fmt.Errorf("max in-flight must be positive, got %d", c.MaxInFlight))
	}

	if c.HealthCheckTimeout <= 0 || c.HealthCheckTimeout > 2*time.Second {
		errs = append(errs, fmt.Errorf("health check timeout must be in (0, 2s], got %v", c.HealthCheckTimeout))
	}

	if c.HealthProbeInterval < 0 || (c.HealthProbeInterval > 0 && c.HealthProbeInterval < time.Second) {
		errs = append(errs, fmt.Errorf("health probe interval must be 0 or at least 1s, got %v", c.HealthProbeInterval))
	}

	if !(c.DiskUsageLimit >= 0 && c.DiskUsageLimit <= 100) {
		errs = append(errs, fmt.Errorf("disk usage limit must be in [0, 100], got %v", c.DiskUsageLimit))
	}

	if c.LoadSimMaxDelay <= 0 {
		errs = append(errs, fmt.Errorf("load simulation max delay must be positive, got %v", c.LoadSimMaxDelay))
	}

	return errors.Join(errs...)
}

// Address is the listen address of the HTTP server.
func (c Config) Address() string {
	return ":" + c.Port
}

// RedisAddr returns host:port, or "" when no cache is configured.
func (c Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1500ms") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
