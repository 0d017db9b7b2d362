package store

import (
	"context"
	"strconv"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/cenkalti/backoff/v4"
)

// ConnectConfig controls how Connect reaches Redis.
type ConnectConfig struct {
	Redis RedisConfig

	// Timeout bounds the whole connection attempt including retries.
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Connect returns a Redis store when one is configured and reachable within
// cfg.Timeout, retrying with exponential backoff. Otherwise it logs and
// returns an in-process store so the service keeps serving.
func Connect(ctx context.Context, cfg ConnectConfig, logger observability.Logger) Store {
	if cfg.Redis.Addr == "" {
		logger.Info(ctx, "no cache configured, using in-memory metrics store")
		return NewMemory()
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = time.Second
	}

	client := NewRedis(cfg.Redis)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.MaxElapsedTime = cfg.Timeout

	attempt := 0
	operation := func() error {
		attempt++
		if err := client.Ping(ctx); err != nil {
			logger.Warn(ctx, "cache ping failed",
				observability.String("addr", cfg.Redis.Addr),
				observability.Int("attempt", attempt),
				observability.Error(err),
			)
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		logger.Warn(ctx, "cache unreachable, using in-memory metrics store",
			observability.String("addr", cfg.Redis.Addr),
			observability.Error(err),
		)
		_ = client.Close()
		return NewMemory()
	}

	logger.Info(ctx, "using redis for shared metrics storage",
		observability.String("addr", cfg.Redis.Addr),
	)
	return client
}

// InitStartTime records now as the cluster start time unless a replica already
// did, and returns the stored value.
func InitStartTime(ctx context.Context, s Store, now time.Time) (time.Time, error) {
	if _, err := s.SetNX(ctx, KeyStartTime, strconv.FormatInt(now.UnixNano(), 10)); err != nil {
		return now, err
	}

	raw, err := s.GetString(ctx, KeyStartTime)
	if err != nil {
		return now, err
	}

	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return now, err
	}
	return time.Unix(0, nanos), nil
}
