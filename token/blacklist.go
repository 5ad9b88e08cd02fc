package token

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/go-auth-sessions/cache"
	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
	"github.com/jrsteele09/go-auth-sessions/internal/retry"
)

const blacklistKeyPrefix = "bl:"

// Blacklist records access token IDs revoked before their natural expiry.
// Entries expire with the token, so absence says nothing beyond the normal
// signature and expiry checks.
type Blacklist struct {
	cache cache.Cache
}

func NewBlacklist(c cache.Cache) *Blacklist {
	return &Blacklist{cache: c}
}

func blacklistKey(jti string) string {
	return blacklistKeyPrefix + jti
}

// Add blacklists jti for ttl. Re-adding an existing entry is a no-op.
func (b *Blacklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if _, err := b.cache.SetIfAbsent(ctx, blacklistKey(jti), "1", ttl); err != nil {
		return err
	}
	return nil
}

// IsBlacklisted reports whether jti is blacklisted. When the cache cannot be
// read it returns true together with the error.
func (b *Blacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	_, err := retry.ReadOnce(func() (string, error) {
		return b.cache.Get(ctx, blacklistKey(jti))
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, cache.ErrMiss):
		return false, nil
	case apperrors.Is(err, apperrors.ErrUpstreamUnavailable):
		return true, err
	default:
		return true, apperrors.Upstream(err, "blacklist read")
	}
}
