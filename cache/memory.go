package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var _ Cache = (*MemoryCache)(nil)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is a process-local Cache. It is a degraded mode for single
// instance deployments and tests: state is not shared between processes, so
// lockout counters and blacklist entries lose cross-instance consistency.
type MemoryCache struct {
	entries map[string]memoryEntry
	mu      sync.Mutex
	nowFunc func() time.Time
}

type MemoryOption func(*MemoryCache)

// WithClock sets the time source (primarily for testing)
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.nowFunc = now
	}
}

func NewMemoryCache(options ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// lookup returns the live entry for key, dropping it if it has expired.
// Callers must hold c.mu.
func (c *MemoryCache) lookup(key string, now time.Time) (memoryEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (c *MemoryCache) incr(key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	e, ok := c.lookup(key, now)
	var n int64
	if ok {
		current, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "[MemoryCache.Incr] value of %q is not an integer", key)
		}
		n = current
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	if !ok && ttl > 0 {
		e.expiresAt = now.Add(time.Duration(wholeSeconds(ttl)) * time.Second)
	}
	c.entries[key] = e
	return n, nil
}

func (c *MemoryCache) Incr(_ context.Context, key string) (int64, error) {
	return c.incr(key, 0)
}

func (c *MemoryCache) IncrWithExpire(_ context.Context, key string, ttl time.Duration) (int64, error) {
	return c.incr(key, ttl)
}

func (c *MemoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	e, ok := c.lookup(key, now)
	if !ok {
		return nil
	}
	e.expiresAt = now.Add(ttl)
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key, c.nowFunc())
	if !ok {
		return "", ErrMiss
	}
	return e.value, nil
}

func (c *MemoryCache) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = c.nowFunc().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	if _, ok := c.lookup(key, now); ok {
		return false, nil
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.entries[key] = e
	return true, nil
}

func (c *MemoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	e, ok := c.lookup(key, now)
	if !ok {
		return 0, ErrMiss
	}
	if e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (c *MemoryCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) Close() error {
	return nil
}
