package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestLoadDefaults() {
	for _, key := range []string{"PORT", "REDIS_HOST", "WORKERS", "HEALTH_CHECK_TIMEOUT", "HEALTH_PROBE_INTERVAL", "ENVIRONMENT"} {
		s.T().Setenv(key, "")
	}

	cfg := Load()

	s.Equal("6000", cfg.Port)
	s.Equal(":6000", cfg.Address())
	s.Equal("development", cfg.Environment)
	s.Equal(4, cfg.Workers)
	s.Equal(time.Second, cfg.HealthCheckTimeout)
	s.Equal(15*time.Second, cfg.HealthProbeInterval)
	s.Equal(90.0, cfg.DiskUsageLimit)
	s.Equal("/", cfg.DiskPath)
	s.Equal("", cfg.RedisAddr())
	s.False(cfg.IsProduction())
	s.NoError(cfg.Validate())
}

func (s *ConfigSuite) TestLoadFromEnvironment() {
	s.T().Setenv("PORT", "8080")
	s.T().Setenv("ENVIRONMENT", "production")
	s.T().Setenv("REDIS_HOST", "redis")
	s.T().Setenv("REDIS_PORT", "6380")
	s.T().Setenv("WORKERS", "8")
	s.T().Setenv("HEALTH_CHECK_TIMEOUT", "1500ms")
	s.T().Setenv("LOADSIM_MAX_DELAY", "3")
	s.T().Setenv("CACHE_CRITICAL", "true")

	cfg := Load()

	s.Equal(":8080", cfg.Address())
	s.True(cfg.IsProduction())
	s.Equal("redis:6380", cfg.RedisAddr())
	s.Equal(8, cfg.Workers)
	s.Equal(1500*time.Millisecond, cfg.HealthCheckTimeout)
	s.Equal(3*time.Second, cfg.LoadSimMaxDelay)
	s.True(cfg.CacheCritical)
	s.NoError(cfg.Validate())
}

func (s *ConfigSuite) TestMalformedValuesFallBackToDefaults() {
	s.T().Setenv("WORKERS", "many")
	s.T().Setenv("CACHE_CRITICAL", "maybe")
	s.T().Setenv("HEALTH_CHECK_TIMEOUT", "soon")

	cfg := Load()

	s.Equal(4, cfg.Workers)
	s.False(cfg.CacheCritical)
	s.Equal(time.Second, cfg.HealthCheckTimeout)
}

func (s *ConfigSuite) TestValidate() {
	scenarios := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "port", mutate: func(c *Config) { c.Port = "abc" }, errMsg: "invalid port"},
		{name: "workers", mutate: func(c *Config) { c.Workers = 0 }, errMsg: "workers must be positive"},
		{name: "health timeout too large", mutate: func(c *Config) { c.HealthCheckTimeout = 5 * time.Second }, errMsg: "health check timeout"},
		{name: "probe interval", mutate: func(c *Config) { c.HealthProbeInterval = 100 * time.Millisecond }, errMsg: "health probe interval"},
		{name: "disk limit", mutate: func(c *Config) { c.DiskUsageLimit = 120 }, errMsg: "disk usage limit"},
		{name: "redis port", mutate: func(c *Config) { c.RedisHost = "redis"; c.RedisPort = 0 }, errMsg: "invalid redis port"},
		{name: "service name", mutate: func(c *Config) { c.ServiceName = " " }, errMsg: "service name is required"},
	}

	for _, scenario := range scenarios {
		s.Run(scenario.name, func() {
			cfg := Load()
			scenario.mutate(&cfg)
			err := cfg.Validate()
			s.Error(err)
			s.Contains(err.Error(), scenario.errMsg)
		})
	}
}
