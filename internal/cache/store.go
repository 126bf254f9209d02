// Package cache provides the distributed key/value store the traffic
// stats engine uses for real-time snapshots, plus key construction
// helpers. The Redis implementation is the production store; tests run
// against miniredis.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by GetString when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is the minimal distributed cache surface the engine consumes.
// Implementations must be safe for concurrent use.
type Store interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Observer receives cache hit/miss notifications for metrics.
type Observer interface {
	CacheHit()
	CacheMiss()
}
