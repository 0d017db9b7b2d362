// Package store holds counters and latency samples shared by every replica
// of the service. Redis is used when configured; an in-process store is the
// fallback.
package store

import (
	"context"
	"errors"
)

// KeyPrefix namespaces every key written by the service.
const KeyPrefix = "app:"

const (
	KeyRequestsTotal = KeyPrefix + "requests_total"
	KeyErrorsTotal   = KeyPrefix + "errors_total"
	KeyResponseTimes = KeyPrefix + "response_times"
	KeyStartTime     = KeyPrefix + "start_time"

	// KeyErrorsByStatus and KeyEndpointPrefix are completed with a status code or a route.
	KeyErrorsByStatus = KeyPrefix + "errors:"
	KeyEndpointPrefix = KeyPrefix + "endpoint:"
)

// DefaultSampleLimit is how many latency samples are kept.
const DefaultSampleLimit = 1000

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("store: key not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Store is the shared counter store.
type Store interface {
	// Name identifies the backend ("redis" or "in-memory").
	Name() string
	Ping(ctx context.Context) error

	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	// Counters returns every counter whose key starts with prefix.
	Counters(ctx context.Context, prefix string) (map[string]int64, error)

	// PushSample prepends value and keeps at most limit samples under key.
	PushSample(ctx context.Context, key string, value float64, limit int) error
	Samples(ctx context.Context, key string) ([]float64, error)

	// SetNX stores value under key only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value string) (bool, error)
	GetString(ctx context.Context, key string) (string, error)

	Close() error
}
