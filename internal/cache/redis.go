package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client *redis.Client
	obs    Observer
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithObserver wires hit/miss notifications to obs.
func WithObserver(obs Observer) RedisOption {
	return func(s *RedisStore) {
		s.obs = obs
	}
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) GetString(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			if s.obs != nil {
				s.obs.CacheMiss()
			}
			return "", ErrMiss
		}
		return "", fmt.Errorf("cache get %s: %w", key, err)
	}
	if s.obs != nil {
		s.obs.CacheHit()
	}
	return val, nil
}

func (s *RedisStore) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache del %s: %w", key, err)
	}
	return nil
}
