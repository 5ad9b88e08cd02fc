package errors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers of the auth core. Every failure leaving the
// auth package matches exactly one of these with errors.Is.
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")

	// Registration errors
	ErrDuplicateEmail = errors.New("email already registered")
	ErrInvalidInput   = errors.New("invalid input")

	// Token errors. Bad signature, expiry, device mismatch, reuse and unknown
	// tokens all collapse into ErrInvalidToken.
	ErrInvalidToken = errors.New("invalid token")

	// Directory, store or cache I/O failure
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Upstream marks err as an upstream failure while keeping the original cause in the chain.
func Upstream(err error, op string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
