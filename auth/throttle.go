package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jrsteele09/go-auth-sessions/cache"
	"github.com/jrsteele09/go-auth-sessions/internal/metrics"
	"github.com/jrsteele09/go-auth-sessions/internal/retry"
	"github.com/jrsteele09/go-auth-sessions/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLoginMaxAttempts   = 5
	DefaultLoginLockoutWindow = 300 * time.Second

	loginAttemptsKeyPrefix = "la:"
)

// LoginThrottle counts failed logins per email in the shared cache. The
// counter is created with the lockout window as its TTL and is never
// extended, so a lockout always ends one window after the first failure.
//
// Cache failures never lock anyone out: they are logged and the attempt is
// let through.
type LoginThrottle struct {
	cache       cache.Cache
	maxAttempts int64
	window      time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

type ThrottleOption func(*LoginThrottle)

func WithThrottleLogger(logger zerolog.Logger) ThrottleOption {
	return func(lt *LoginThrottle) {
		lt.logger = logger
	}
}

func WithThrottleMetrics(m *metrics.Metrics) ThrottleOption {
	return func(lt *LoginThrottle) {
		lt.metrics = m
	}
}

// NewLoginThrottle creates a throttle locking an email after maxAttempts
// failures within window. Non-positive values select the defaults.
func NewLoginThrottle(c cache.Cache, maxAttempts int, window time.Duration, options ...ThrottleOption) *LoginThrottle {
	if maxAttempts <= 0 {
		maxAttempts = DefaultLoginMaxAttempts
	}
	if window < time.Second {
		window = DefaultLoginLockoutWindow
	}
	lt := &LoginThrottle{
		cache:       c,
		maxAttempts: int64(maxAttempts),
		window:      window,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(lt)
	}
	return lt
}

func loginAttemptsKey(email string) string {
	return loginAttemptsKeyPrefix + users.NormalizeEmail(email)
}

// Locked reports whether email is currently locked out and for how long.
func (lt *LoginThrottle) Locked(ctx context.Context, email string) (bool, time.Duration) {
	key := loginAttemptsKey(email)
	value, err := retry.ReadOnce(func() (string, error) {
		return lt.cache.Get(ctx, key)
	})
	if errors.Is(err, cache.ErrMiss) {
		return false, 0
	}
	if err != nil {
		lt.failOpen(err, email, "read login attempts")
		return false, 0
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		lt.logger.Warn().Err(err).Str("key", key).Msg("login attempt counter is not an integer")
		return false, 0
	}
	if count < lt.maxAttempts {
		return false, 0
	}
	return true, lt.retryAfter(ctx, key)
}

// RecordFailure counts a failed login and reports whether the email is now
// locked out.
func (lt *LoginThrottle) RecordFailure(ctx context.Context, email string) (bool, time.Duration) {
	key := loginAttemptsKey(email)
	count, err := lt.cache.IncrWithExpire(ctx, key, lt.window)
	if err != nil {
		lt.failOpen(err, email, "increment login attempts")
		return false, 0
	}
	if count < lt.maxAttempts {
		return false, 0
	}
	return true, lt.retryAfter(ctx, key)
}

// Reset clears the failure count for email.
func (lt *LoginThrottle) Reset(ctx context.Context, email string) {
	if err := lt.cache.Del(ctx, loginAttemptsKey(email)); err != nil {
		lt.logger.Warn().Err(err).Str("email", email).Msg("failed to reset login attempts")
	}
}

func (lt *LoginThrottle) retryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := lt.cache.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return lt.window
	}
	return ttl
}

func (lt *LoginThrottle) failOpen(err error, email, action string) {
	lt.metrics.ThrottleFailOpen()
	lt.logger.Warn().Err(err).Str("email", email).Msgf("%s failed, allowing attempt", action)
}
