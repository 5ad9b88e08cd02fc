package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-sessions/cache"
	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisCacheFromClient(client, cache.WithOpTimeout(time.Second))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_IncrWithExpire_SetsTTLOnCreateOnly(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	n, err := c.IncrWithExpire(ctx, "la:a@x.com", 300*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 300*time.Second, mr.TTL("la:a@x.com"))

	mr.FastForward(100 * time.Second)

	n, err = c.IncrWithExpire(ctx, "la:a@x.com", 300*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Equal(t, 200*time.Second, mr.TTL("la:a@x.com"), "second increment must not extend the window")

	mr.FastForward(201 * time.Second)
	_, err = c.Get(ctx, "la:a@x.com")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestRedisCache_SetIfAbsent(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	stored, err := c.SetIfAbsent(ctx, "bl:jti-1", "1", time.Minute)
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = c.SetIfAbsent(ctx, "bl:jti-1", "2", time.Hour)
	require.NoError(t, err)
	require.False(t, stored)

	value, err := c.Get(ctx, "bl:jti-1")
	require.NoError(t, err)
	require.Equal(t, "1", value)
	require.Equal(t, time.Minute, mr.TTL("bl:jti-1"))
}

func TestRedisCache_TTL(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	_, err := c.TTL(ctx, "missing")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, c.SetWithTTL(ctx, "k", "v", 0))
	ttl, err := c.TTL(ctx, "k")
	require.NoError(t, err)
	require.Zero(t, ttl)

	require.NoError(t, c.Expire(ctx, "k", 30*time.Second))
	ttl, err = c.TTL(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, ttl)

	require.NoError(t, c.Del(ctx, "k"))
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestRedisCache_Unavailable(t *testing.T) {
	c, mr := newTestRedisCache(t)
	mr.Close()

	_, err := c.IncrWithExpire(context.Background(), "la:a@x.com", time.Minute)
	require.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)

	_, err = c.Get(context.Background(), "bl:x")
	require.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	require.NotErrorIs(t, err, cache.ErrMiss)
}
