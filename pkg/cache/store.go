// Package cache implements the cache-aside data path: a byte-payload store
// backed by Redis and a Fetcher that consults the store before going upstream.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates the requested key was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Store handles cached payloads with a Redis backend.
// Expiry is owned by Redis; entries simply vanish when their TTL elapses.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new cache store with Redis backend.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis: redisClient,
	}
}

// Get retrieves a cached payload by key.
// Returns ErrCacheMiss if the key doesn't exist or has expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	CacheHits.Inc()
	return data, nil
}

// Set stores a payload under key with the given TTL.
// Redis removes the entry automatically once the TTL elapses.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %v", ttl)
	}

	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cached payload.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}
