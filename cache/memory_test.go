package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-sessions/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryCache_IncrWithExpire(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := cache.NewMemoryCache(cache.WithClock(clock.Now))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := c.IncrWithExpire(ctx, "la:a@x.com", 300*time.Second)
		require.NoError(t, err)
		require.Equal(t, int64(i), n)
		clock.Advance(10 * time.Second)
	}

	ttl, err := c.TTL(ctx, "la:a@x.com")
	require.NoError(t, err)
	require.Equal(t, 270*time.Second, ttl)

	clock.Advance(270 * time.Second)
	_, err = c.Get(ctx, "la:a@x.com")
	require.ErrorIs(t, err, cache.ErrMiss)

	n, err := c.IncrWithExpire(ctx, "la:a@x.com", 300*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "counter restarts after the window")
}

func TestMemoryCache_SetIfAbsentAndCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := cache.NewMemoryCache(cache.WithClock(clock.Now))
	ctx := context.Background()

	stored, err := c.SetIfAbsent(ctx, "bl:1", "1", time.Minute)
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = c.SetIfAbsent(ctx, "bl:1", "1", time.Minute)
	require.NoError(t, err)
	require.False(t, stored)

	clock.Advance(time.Minute)
	c.Cleanup()

	_, err = c.TTL(ctx, "bl:1")
	require.ErrorIs(t, err, cache.ErrMiss)

	stored, err = c.SetIfAbsent(ctx, "bl:1", "1", time.Minute)
	require.NoError(t, err)
	require.True(t, stored)
}

func TestMemoryCache_ConcurrentIncr(t *testing.T) {
	c := cache.NewMemoryCache()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := c.Incr(ctx, "counter")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	value, err := c.Get(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, "50", value)
}
