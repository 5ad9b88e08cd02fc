package auth

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
	"github.com/jrsteele09/go-auth-sessions/internal/metrics"
	"github.com/jrsteele09/go-auth-sessions/token"
	"github.com/jrsteele09/go-auth-sessions/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service is the entry point for logging in, registering, refreshing and
// logging out. Every returned error matches one of the sentinels in
// internal/errors.
type Service struct {
	validator *CredentialValidator
	directory users.Directory
	tokens    *token.Manager
	nowTime   func() time.Time // nowTime function (injectable for testing)
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService initializes a Service with required dependencies.
func NewService(
	validator *CredentialValidator,
	directory users.Directory,
	tokens *token.Manager,
	options ...ServiceOption,
) (*Service, error) {
	if validator == nil {
		return nil, pkgerrors.New("[NewService] credential validator is required")
	}
	if directory == nil {
		return nil, pkgerrors.New("[NewService] user directory is required")
	}
	if tokens == nil {
		return nil, pkgerrors.New("[NewService] token manager is required")
	}

	s := &Service{
		validator: validator,
		directory: directory,
		tokens:    tokens,
		nowTime:   time.Now,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login authenticates the user and starts a session on deviceID, replacing
// any session the device already had.
func (s *Service) Login(ctx context.Context, email, password, deviceID string) (*token.TokenPair, error) {
	user, err := s.validator.Validate(ctx, email, password)
	if err != nil {
		s.metrics.Login(loginOutcome(err))
		return nil, err
	}

	pair, err := s.tokens.IssueTokenPair(ctx, user, deviceID)
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		s.logger.Error().Err(err).Str("user_id", user.ID).Str("device_id", deviceID).Msg("failed to issue tokens on login")
		return nil, err
	}

	s.metrics.Login(metrics.OutcomeSuccess)
	s.logger.Info().Str("user_id", user.ID).Str("device_id", deviceID).Msg("user logged in")
	return pair, nil
}

func loginOutcome(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrAccountLocked):
		return metrics.OutcomeLocked
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		return metrics.OutcomeInvalidCredentials
	default:
		return metrics.OutcomeError
	}
}

// Register creates the user and starts a session on deviceID. No tokens are
// issued when the email is already taken or the password is too long to hash.
func (s *Service) Register(ctx context.Context, registration users.Registration, deviceID string) (*token.TokenPair, error) {
	registration.Email = users.NormalizeEmail(registration.Email)
	if err := users.ValidatePassword(registration.Password); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "[Service.Register] %s", err)
	}

	user, err := s.directory.Create(ctx, registration)
	if errors.Is(err, users.ErrDuplicateEmail) {
		return nil, apperrors.Wrapf(apperrors.ErrDuplicateEmail, "[Service.Register] %s", registration.Email)
	}
	if errors.Is(err, users.ErrPasswordTooLong) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "[Service.Register] %s", err)
	}
	if err != nil {
		return nil, apperrors.Upstream(err, "[Service.Register] create user")
	}

	pair, err := s.tokens.IssueTokenPair(ctx, user, deviceID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("user created but token issue failed")
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("device_id", deviceID).Msg("user registered")
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The old refresh token
// stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken, deviceID string) (*token.TokenPair, error) {
	return s.tokens.RotateOnRefresh(ctx, refreshToken, deviceID)
}

// Logout blacklists accessToken for the rest of its lifetime and revokes the
// session of deviceID. A missing or garbled access token, or a failed
// blacklist write, does not fail the call; only a failed revocation does.
func (s *Service) Logout(ctx context.Context, userID, accessToken, deviceID string) error {
	s.blacklistBestEffort(ctx, accessToken)

	if err := s.tokens.RevokeSession(ctx, userID, deviceID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("device_id", deviceID).Msg("failed to revoke session on logout")
		return err
	}

	s.logger.Info().Str("user_id", userID).Str("device_id", deviceID).Msg("user logged out")
	return nil
}

func (s *Service) blacklistBestEffort(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	claims, err := s.tokens.DecodeAccessToken(accessToken)
	if err != nil {
		s.logger.Debug().Err(err).Msg("logout with undecodable access token")
		return
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return
	}

	remaining := int64(claims.ExpiresAt.Sub(s.nowTime()) / time.Second)
	if err := s.tokens.BlacklistAccessToken(ctx, claims.ID, remaining); err != nil {
		s.logger.Warn().Err(err).Str("jti", claims.ID).Msg("failed to blacklist access token on logout")
	}
}

// IsTokenBlacklisted reports whether accessToken must be rejected as
// revoked. Tokens that cannot be decoded or carry no ID count as
// blacklisted, as does any token while the blacklist is unreadable.
func (s *Service) IsTokenBlacklisted(ctx context.Context, accessToken string) bool {
	claims, err := s.tokens.DecodeAccessToken(accessToken)
	if err != nil || claims.ID == "" {
		return true
	}

	blacklisted, err := s.tokens.IsAccessTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("jti", claims.ID).Msg("blacklist unavailable, rejecting token")
		return true
	}
	return blacklisted
}
