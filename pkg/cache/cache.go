// Package cache defines a common interface for cache implementations that can
// be used to store blocks of calculated hexadecimal digits.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Cache defines an interface for a cache implementation that can be used to
// store the results of a calculation for subsequent lookup requests.
type Cache interface {
	// Return the string that was set for key (or "" if unset) and an Error
	// if the implementation failed.
	// NOTE: a cache miss *should not* return an error.
	GetValue(ctx context.Context, key string) (string, error)
	// Store the value string with the provided key, returning an error if
	// the implementation failed.
	SetValue(ctx context.Context, key string, value string) error
}

// NoopCache implements Cache interface without any real caching.
type NoopCache struct{}

// Always returns an empty string and no error for every key.
func (n *NoopCache) GetValue(_ context.Context, _ string) (string, error) {
	return "", nil
}

// Ignores the value and returns nil error.
func (n *NoopCache) SetValue(_ context.Context, _ string, _ string) error {
	return nil
}

// Creates a no-operation Cache implementation that satisfies the interface
// requirements without performing any real caching. All values are silently
// dropped by SetValue and calls to GetValue always return an empty string.
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

// MemoryCache implements Cache interface with an unbounded in-process map. It
// is safe for concurrent use and suited to read-mostly access.
type MemoryCache struct {
	values sync.Map
}

// Returns the string stored under key, or an empty string.
func (m *MemoryCache) GetValue(_ context.Context, key string) (string, error) {
	if value, ok := m.values.Load(key); ok {
		return value.(string), nil //nolint:forcetypeassert // Only strings are stored
	}
	return "", nil
}

// Store the string key:value pair in memory.
func (m *MemoryCache) SetValue(_ context.Context, key string, value string) error {
	m.values.Store(key, value)
	return nil
}

// Creates an empty in-memory Cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// RedisCache implements Cache interface backed by a Redis store.
type RedisCache struct {
	*redis.Pool
	// An optional prefix prepended to every key.
	prefix string
}

// Defines the function signature for RedisCache options.
type RedisCacheOption func(*RedisCache)

// Set the maximum number of idle connections held by the pool.
func WithRedisMaxIdle(maxIdle int) RedisCacheOption {
	return func(r *RedisCache) {
		r.MaxIdle = maxIdle
	}
}

// Close connections that have been idle for longer than timeout.
func WithRedisIdleTimeout(timeout time.Duration) RedisCacheOption {
	return func(r *RedisCache) {
		r.IdleTimeout = timeout
	}
}

// Prepend prefix to every key written to or read from Redis, allowing a Redis
// instance to be shared.
func WithRedisKeyPrefix(prefix string) RedisCacheOption {
	return func(r *RedisCache) {
		r.prefix = prefix
	}
}

// Return a new Cache implementation using Redis.
func NewRedisCache(_ context.Context, endpoint string, options ...RedisCacheOption) *RedisCache {
	cache := &RedisCache{
		Pool: &redis.Pool{
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", endpoint)
			},
		},
	}
	for _, option := range options {
		option(cache)
	}
	return cache
}

// Returns the string value stored in Redis under key, if present, or an empty string.
func (r *RedisCache) GetValue(ctx context.Context, key string) (string, error) {
	conn, err := r.GetContext(ctx)
	if err != nil {
		return "", err //nolint:wrapcheck // Redis errors are returned unchanged
	}
	defer conn.Close()

	value, err := redis.String(conn.Do("GET", r.prefix+key))
	if err == redis.ErrNil {
		// A cache miss is *NOT* an error to propagate
		return "", nil
	}
	if err != nil {
		return "", err //nolint:wrapcheck // Redis errors are returned unchanged
	}
	return value, nil
}

// Store the string key:value pair in Redis.
func (r *RedisCache) SetValue(ctx context.Context, key string, value string) error {
	conn, err := r.GetContext(ctx)
	if err != nil {
		return err //nolint:wrapcheck // Redis errors are returned unchanged
	}
	defer conn.Close()
	if _, err = conn.Do("SET", r.prefix+key, value); err != nil {
		return err //nolint:wrapcheck // Redis errors are returned unchanged
	}
	return nil
}
