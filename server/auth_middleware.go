package server

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/jrsteele09/go-auth-sessions/token"
	"github.com/jrsteele09/go-auth-sessions/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClaims stores the verified access token claims
	ContextKeyClaims ContextKey = "claims"
	// ContextKeyAccessToken stores the raw access token
	ContextKeyAccessToken ContextKey = "access_token"
)

// AccessTokenVerifier verifies access tokens and checks them against the
// blacklist. token.Manager implements it.
type AccessTokenVerifier interface {
	ParseAccessToken(raw string) (*token.AccessClaims, error)
	IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// GuardConfig parameterises a Guard. Zero values select the Authorization
// header, the Bearer scheme and no role restriction.
type GuardConfig struct {
	Header       string
	Scheme       string
	AllowedRoles []users.RoleType
}

// Guard rejects requests that do not carry a valid, non-blacklisted access
// token. Accepted requests get the claims and raw token in their context.
type Guard struct {
	config   GuardConfig
	verifier AccessTokenVerifier
	logger   zerolog.Logger
}

type GuardOption func(*Guard)

func WithGuardLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func NewGuard(verifier AccessTokenVerifier, config GuardConfig, options ...GuardOption) *Guard {
	if config.Header == "" {
		config.Header = "Authorization"
	}
	if config.Scheme == "" {
		config.Scheme = token.TokenTypeBearer
	}
	g := &Guard{
		config:   config,
		verifier: verifier,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// WithRoles returns a copy of the guard that only admits the given roles.
func (g *Guard) WithRoles(roles ...users.RoleType) *Guard {
	copied := *g
	copied.config.AllowedRoles = roles
	return &copied
}

func (g *Guard) extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get(g.config.Header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], g.config.Scheme) {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}

func (g *Guard) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := g.extractToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", g.config.Scheme)
			writeJSONError(w, errorInvalidToken, "Missing or malformed "+g.config.Header+" header", http.StatusUnauthorized)
			return
		}

		claims, err := g.verifier.ParseAccessToken(raw)
		if err != nil {
			w.Header().Set("WWW-Authenticate", g.config.Scheme+` error="invalid_token"`)
			writeJSONError(w, errorInvalidToken, "Invalid access token", http.StatusUnauthorized)
			return
		}

		blacklisted, err := g.verifier.IsAccessTokenBlacklisted(r.Context(), claims.ID)
		if err != nil {
			g.logger.Warn().Err(err).Str("jti", claims.ID).Msg("blacklist unavailable, rejecting token")
		}
		if blacklisted || err != nil {
			w.Header().Set("WWW-Authenticate", g.config.Scheme+` error="invalid_token"`)
			writeJSONError(w, errorInvalidToken, "Access token revoked", http.StatusUnauthorized)
			return
		}

		if len(g.config.AllowedRoles) > 0 && !slices.Contains(g.config.AllowedRoles, users.RoleType(claims.Role)) {
			writeJSONError(w, errorForbidden, "Insufficient role", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
		ctx = context.WithValue(ctx, ContextKeyAccessToken, raw)
		next(w, r.WithContext(ctx))
	}
}

// ClaimsFromContext returns the claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*token.AccessClaims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.AccessClaims)
	return claims, ok
}

// AccessTokenFromContext returns the raw access token stored by Guard.
func AccessTokenFromContext(ctx context.Context) string {
	raw, _ := ctx.Value(ContextKeyAccessToken).(string)
	return raw
}
