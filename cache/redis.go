package cache

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 250 * time.Millisecond

const incrWithExpireScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`

var incrWithExpireLua = redis.NewScript(incrWithExpireScript)

var _ Cache = (*RedisCache)(nil)

// RedisCache implements Cache on top of Redis. Every command runs under its
// own timeout derived from the caller's context.
type RedisCache struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

type RedisOption func(*RedisCache)

func WithOpTimeout(d time.Duration) RedisOption {
	return func(c *RedisCache) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr, password string, db int, options ...RedisOption) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	c := NewRedisCacheFromClient(client, options...)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Upstream(err, "redis ping")
	}
	return c, nil
}

func NewRedisCacheFromClient(client redis.UniversalClient, options ...RedisOption) *RedisCache {
	c := &RedisCache{client: client, opTimeout: defaultOpTimeout}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, apperrors.Upstream(err, "redis incr")
	}
	return n, nil
}

func (c *RedisCache) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	n, err := incrWithExpireLua.Run(ctx, c.client, []string{key}, wholeSeconds(ttl)).Int64()
	if err != nil {
		return 0, apperrors.Upstream(err, "redis incr with expire")
	}
	return n, nil
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return apperrors.Upstream(err, "redis expire")
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", apperrors.Upstream(err, "redis get")
	}
	return value, nil
}

func (c *RedisCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperrors.Upstream(err, "redis set")
	}
	return nil
}

func (c *RedisCache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	stored, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, apperrors.Upstream(err, "redis setnx")
	}
	return stored, nil
}

func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, apperrors.Upstream(err, "redis ttl")
	}
	// go-redis reports -2 for a missing key and -1 for a key without expiry.
	switch {
	case ttl == -2:
		return 0, ErrMiss
	case ttl < 0:
		return 0, nil
	}
	return ttl, nil
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return apperrors.Upstream(err, "redis del")
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
