package auth

import (
	"context"
	"errors"

	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
	"github.com/jrsteele09/go-auth-sessions/internal/metrics"
	"github.com/jrsteele09/go-auth-sessions/internal/retry"
	"github.com/jrsteele09/go-auth-sessions/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionRevoker revokes every refresh session a user holds.
type SessionRevoker interface {
	RevokeAllSessions(ctx context.Context, userID string) error
}

// CredentialValidator authenticates an email and password against the user
// directory, applying the login throttle.
type CredentialValidator struct {
	directory users.Directory
	throttle  *LoginThrottle
	revoker   SessionRevoker // Optional, revokes sessions when an account locks
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

type ValidatorOption func(*CredentialValidator)

// WithLockoutRevoker revokes all of a user's sessions when their account
// reaches the lockout threshold. Failed logins need only the email, so this
// lets a third party sign the user out of every device.
func WithLockoutRevoker(revoker SessionRevoker) ValidatorOption {
	return func(cv *CredentialValidator) {
		cv.revoker = revoker
	}
}

func WithValidatorLogger(logger zerolog.Logger) ValidatorOption {
	return func(cv *CredentialValidator) {
		cv.logger = logger
	}
}

func WithValidatorMetrics(m *metrics.Metrics) ValidatorOption {
	return func(cv *CredentialValidator) {
		cv.metrics = m
	}
}

func NewCredentialValidator(directory users.Directory, throttle *LoginThrottle, options ...ValidatorOption) (*CredentialValidator, error) {
	if directory == nil {
		return nil, pkgerrors.New("[NewCredentialValidator] user directory is required")
	}
	if throttle == nil {
		return nil, pkgerrors.New("[NewCredentialValidator] login throttle is required")
	}

	cv := &CredentialValidator{
		directory: directory,
		throttle:  throttle,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(cv)
	}
	return cv, nil
}

// Validate returns the user owning email when password matches.
//
// A missing user and a wrong password are reported identically as
// ErrInvalidCredentials, and both pay for a bcrypt comparison. Once the email has failed too many times every
// attempt, including one with the correct password, fails with
// *AccountLockedError until the lockout window passes. A successful login
// clears the failure count.
func (cv *CredentialValidator) Validate(ctx context.Context, email, password string) (*users.User, error) {
	email = users.NormalizeEmail(email)

	if locked, retryAfter := cv.throttle.Locked(ctx, email); locked {
		return nil, &AccountLockedError{RetryAfter: retryAfter}
	}

	user, err := retry.ReadOnce(func() (*users.User, error) {
		user, err := cv.directory.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			return nil, apperrors.Upstream(err, "[CredentialValidator.Validate] find user")
		}
		return user, err
	})
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	if user == nil {
		// The result is ignored; only the bcrypt cost matters.
		cv.directory.VerifyPassword(users.PlaceholderUser(), password)
		return nil, cv.fail(ctx, email, nil)
	}
	if !cv.directory.VerifyPassword(user, password) {
		return nil, cv.fail(ctx, email, user)
	}

	cv.throttle.Reset(ctx, email)
	return user, nil
}

func (cv *CredentialValidator) fail(ctx context.Context, email string, user *users.User) error {
	locked, retryAfter := cv.throttle.RecordFailure(ctx, email)
	if !locked {
		return apperrors.ErrInvalidCredentials
	}

	cv.metrics.Lockout()
	cv.logger.Warn().Str("email", email).Dur("retry_after", retryAfter).Msg("account locked after failed logins")

	if user != nil && cv.revoker != nil {
		if err := cv.revoker.RevokeAllSessions(ctx, user.ID); err != nil {
			cv.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to revoke sessions on lockout")
		}
	}
	return &AccountLockedError{RetryAfter: retryAfter}
}
