package retry

import (
	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
)

// ReadOnce runs fn and, if it fails with ErrUpstreamUnavailable, runs it one
// more time without backoff. Use it for read paths only; writes that must not
// be repeated call the store directly.
func ReadOnce[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || !apperrors.Is(err, apperrors.ErrUpstreamUnavailable) {
		return v, err
	}
	return fn()
}
