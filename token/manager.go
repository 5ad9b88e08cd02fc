package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
	"github.com/jrsteele09/go-auth-sessions/internal/metrics"
	"github.com/jrsteele09/go-auth-sessions/internal/retry"
	"github.com/jrsteele09/go-auth-sessions/token/refresh"
	"github.com/jrsteele09/go-auth-sessions/users"
	"github.com/oklog/ulid/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Manager issues, verifies, rotates and revokes access/refresh token pairs.
// It is the only writer of refresh token records and keeps at most one live
// record per (user, device).
type Manager struct {
	accessSigner       Signer
	refreshSigner      Signer
	refreshRepo        refresh.Repo
	userRepo           users.Directory
	blacklist          *Blacklist
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
	logger             zerolog.Logger
	metrics            *metrics.Metrics
}

type ManagerOption func(*Manager)

// WithTokenExpiry sets token lifetimes from duration strings such as "15m" or
// "7d". Unparsable values keep the defaults.
func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry string) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = ParseExpiry(accessTokenExpiry, DefaultAccessTokenExpiry)
		m.refreshTokenExpiry = ParseExpiry(refreshTokenExpiry, DefaultRefreshTokenExpiry)
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func New(
	refreshRepo refresh.Repo,
	userRepo users.Directory,
	blacklist *Blacklist,
	accessSigner Signer,
	refreshSigner Signer,
	options ...ManagerOption,
) (*Manager, error) {
	if refreshRepo == nil {
		return nil, pkgerrors.New("[token.New] refresh repo is required")
	}
	if userRepo == nil {
		return nil, pkgerrors.New("[token.New] user repo is required")
	}
	if blacklist == nil {
		return nil, pkgerrors.New("[token.New] blacklist is required")
	}
	if accessSigner == nil || refreshSigner == nil {
		return nil, pkgerrors.New("[token.New] access and refresh signers are required")
	}

	m := &Manager{
		accessSigner:       accessSigner,
		refreshSigner:      refreshSigner,
		refreshRepo:        refreshRepo,
		userRepo:           userRepo,
		blacklist:          blacklist,
		accessTokenExpiry:  DefaultAccessTokenExpiry,
		refreshTokenExpiry: DefaultRefreshTokenExpiry,
		nowFunc:            time.Now,
		logger:             log.Logger,
	}

	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// AccessTokenExpiry returns the configured access token lifetime.
func (m *Manager) AccessTokenExpiry() time.Duration {
	return m.accessTokenExpiry
}

// IssueTokenPair signs a new access and refresh token for user on deviceID.
// Any live refresh record for the device is revoked in the same store
// operation that persists the new one. A failed store write is not retried.
func (m *Manager) IssueTokenPair(ctx context.Context, user *users.User, deviceID string) (*TokenPair, error) {
	if user == nil {
		return nil, pkgerrors.New("[Manager.IssueTokenPair] user is required")
	}
	now := m.nowFunc()

	accessToken, err := m.accessSigner.Sign(AccessClaims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenExpiry)),
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Manager.IssueTokenPair] sign access token")
	}

	refreshExpiresAt := now.Add(m.refreshTokenExpiry)
	refreshToken, err := m.refreshSigner.Sign(RefreshClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiresAt),
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Manager.IssueTokenPair] sign refresh token")
	}

	if err := m.refreshRepo.Save(ctx, &refresh.Record{
		ID:        ulid.Make().String(),
		TokenHash: refresh.HashToken(refreshToken),
		UserID:    user.ID,
		DeviceID:  deviceID,
		ExpiresAt: refreshExpiresAt,
		CreatedAt: now,
	}); err != nil {
		return nil, apperrors.Upstream(err, "[Manager.IssueTokenPair] save refresh token")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.accessTokenExpiry / time.Second),
		TokenType:    TokenTypeBearer,
	}, nil
}

// RotateOnRefresh exchanges a refresh token for a new pair. The presented
// token is single-use: its record is revoked before the new pair is issued,
// and only one of several concurrent rotations of the same token succeeds.
func (m *Manager) RotateOnRefresh(ctx context.Context, refreshToken, deviceID string) (*TokenPair, error) {
	pair, err := m.rotate(ctx, refreshToken, deviceID)
	switch {
	case err == nil:
		m.metrics.Refresh(metrics.OutcomeSuccess)
	case apperrors.Is(err, apperrors.ErrInvalidToken):
		m.metrics.Refresh(metrics.OutcomeInvalidToken)
		m.logger.Debug().Err(err).Str("device_id", deviceID).Msg("refresh rejected")
	default:
		m.metrics.Refresh(metrics.OutcomeError)
		m.logger.Error().Err(err).Str("device_id", deviceID).Msg("refresh failed")
	}
	return pair, err
}

func (m *Manager) rotate(ctx context.Context, refreshToken, deviceID string) (*TokenPair, error) {
	claims, err := m.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.DeviceID != deviceID {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Manager.RotateOnRefresh] device mismatch")
	}

	tokenHash := refresh.HashToken(refreshToken)
	now := m.nowFunc()
	rec, err := retry.ReadOnce(func() (*refresh.Record, error) {
		rec, err := m.refreshRepo.FindValid(ctx, tokenHash, claims.Subject, deviceID, now)
		if errors.Is(err, refresh.ErrNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Manager.RotateOnRefresh] no live record")
		}
		if err != nil {
			return nil, apperrors.Upstream(err, "[Manager.RotateOnRefresh] find refresh token")
		}
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	if rec.UserID != claims.Subject || rec.DeviceID != deviceID || rec.IsRevoked || !rec.ExpiresAt.After(now) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Manager.RotateOnRefresh] stale record")
	}

	revoked, err := m.refreshRepo.Revoke(ctx, tokenHash)
	if err != nil {
		return nil, apperrors.Upstream(err, "[Manager.RotateOnRefresh] revoke refresh token")
	}
	if !revoked {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Manager.RotateOnRefresh] already rotated")
	}

	user, err := retry.ReadOnce(func() (*users.User, error) {
		user, err := m.userRepo.GetByID(ctx, claims.Subject)
		if errors.Is(err, users.ErrNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Manager.RotateOnRefresh] unknown user")
		}
		if err != nil {
			return nil, apperrors.Upstream(err, "[Manager.RotateOnRefresh] find user")
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}

	return m.IssueTokenPair(ctx, user, deviceID)
}

// RevokeSession revokes the refresh record of a device. Revoking an already
// revoked or unknown session is not an error.
func (m *Manager) RevokeSession(ctx context.Context, userID, deviceID string) error {
	if err := m.refreshRepo.RevokeAllForDevice(ctx, userID, deviceID); err != nil {
		return apperrors.Upstream(err, "[Manager.RevokeSession]")
	}
	return nil
}

// RevokeAllSessions revokes every refresh record of a user on every device.
func (m *Manager) RevokeAllSessions(ctx context.Context, userID string) error {
	if err := m.refreshRepo.RevokeAllForUser(ctx, userID); err != nil {
		return apperrors.Upstream(err, "[Manager.RevokeAllSessions]")
	}
	return nil
}

// BlacklistAccessToken blacklists tokenID for the given number of seconds.
// Tokens with no remaining lifetime are already rejected by expiry checks and
// are not stored.
func (m *Manager) BlacklistAccessToken(ctx context.Context, tokenID string, remainingTTLSeconds int64) error {
	if tokenID == "" || remainingTTLSeconds <= 0 {
		return nil
	}
	if err := m.blacklist.Add(ctx, tokenID, time.Duration(remainingTTLSeconds)*time.Second); err != nil {
		m.metrics.BlacklistWrite(metrics.OutcomeError)
		return err
	}
	m.metrics.BlacklistWrite(metrics.OutcomeSuccess)
	return nil
}

// IsAccessTokenBlacklisted reports whether tokenID was revoked. On a cache
// failure it returns true together with the error.
func (m *Manager) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	blacklisted, err := m.blacklist.IsBlacklisted(ctx, tokenID)
	if err != nil {
		m.metrics.BlacklistFailClosed()
	}
	return blacklisted, err
}

func (m *Manager) parserOptions(signer Signer) []jwt.ParserOption {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}
	return options
}

// ParseAccessToken verifies the signature and expiry of an access token.
func (m *Manager) ParseAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, m.accessSigner.GetVerificationKey, m.parserOptions(m.accessSigner)...)
	if err != nil || !token.Valid {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Manager.ParseAccessToken] %v", err)
	}
	return claims, nil
}

// ParseRefreshToken verifies the signature and expiry of a refresh token
// against the refresh secret.
func (m *Manager) ParseRefreshToken(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, m.refreshSigner.GetVerificationKey, m.parserOptions(m.refreshSigner)...)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Manager.ParseRefreshToken] %v", err)
	}
	return claims, nil
}

// DecodeAccessToken reads access token claims without verifying the
// signature or expiry.
func (m *Manager) DecodeAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Manager.DecodeAccessToken] %v", err)
	}
	return claims, nil
}
