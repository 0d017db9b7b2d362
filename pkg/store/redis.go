package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// SocketTimeout bounds dial, read and write of every command.
	SocketTimeout time.Duration
}

// Redis is a Store backed by a Redis server shared between replicas.
type Redis struct {
	client *redis.Client
}

// NewRedis creates the client. It does not contact the server; use Ping.
func NewRedis(cfg RedisConfig) *Redis {
	timeout := cfg.SocketTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
			MaxRetries:   1,
		}),
	}
}

func (r *Redis) Name() string {
	return "redis"
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	value, err := r.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby %s: %w", key, err)
	}
	return value, nil
}

func (r *Redis) Get(ctx context.Context, key string) (int64, error) {
	value, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (r *Redis) Counters(ctx context.Context, prefix string) (map[string]int64, error) {
	var keys []string

	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}

	result := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// lists and non-numeric strings share the prefix
			continue
		}
		result[keys[i]] = n
	}

	return result, nil
}

func (r *Redis) PushSample(ctx context.Context, key string, value float64, limit int) error {
	if limit <= 0 {
		limit = DefaultSampleLimit
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, value)
		pipe.LTrim(ctx, key, 0, int64(limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push sample %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Samples(ctx context.Context, key string) ([]float64, error) {
	raw, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}

	samples := make([]float64, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		samples = append(samples, v)
	}
	return samples, nil
}

func (r *Redis) SetNX(ctx context.Context, key string, value string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *Redis) GetString(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
