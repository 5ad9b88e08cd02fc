package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get and TTL when the key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// Cache is the ephemeral key-value store shared by every instance of the
// service. Implementations report I/O failures wrapped in
// internal/errors.ErrUpstreamUnavailable.
type Cache interface {
	// Incr atomically increments key, creating it at 1 without an expiry.
	Incr(ctx context.Context, key string) (int64, error)
	// IncrWithExpire atomically increments key and, when the increment created
	// the key, sets its TTL. Later increments leave the TTL untouched.
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsent stores value only when key does not exist and reports
	// whether it was stored.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// TTL returns the remaining lifetime of key, 0 when it never expires.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// wholeSeconds floors d to whole seconds, never below one.
func wholeSeconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
