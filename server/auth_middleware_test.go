package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-sessions/server"
	"github.com/jrsteele09/go-auth-sessions/token"
	"github.com/jrsteele09/go-auth-sessions/users"
	"github.com/stretchr/testify/require"
)

// stubVerifier accepts the token "good-<role>" and reports a fixed blacklist result.
type stubVerifier struct {
	blacklisted  bool
	blacklistErr error
}

func (v *stubVerifier) ParseAccessToken(raw string) (*token.AccessClaims, error) {
	if len(raw) < 5 || raw[:5] != "good-" {
		return nil, errors.New("bad token")
	}
	return &token.AccessClaims{
		Email:            testEmail,
		Role:             raw[5:],
		RegisteredClaims: jwt.RegisteredClaims{ID: "jti-1", Subject: "user-1"},
	}, nil
}

func (v *stubVerifier) IsAccessTokenBlacklisted(context.Context, string) (bool, error) {
	return v.blacklisted, v.blacklistErr
}

func guarded(g *server.Guard) (http.HandlerFunc, *bool) {
	called := false
	return g.Middleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := server.ClaimsFromContext(r.Context())
		if !ok || claims.Subject != "user-1" || server.AccessTokenFromContext(r.Context()) == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), &called
}

func serveWithHeader(h http.HandlerFunc, name, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if name != "" {
		req.Header.Set(name, value)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name     string
		verifier *stubVerifier
		header   string
		expected int
	}{
		{"valid", &stubVerifier{}, "Bearer good-user", http.StatusOK},
		{"scheme is case insensitive", &stubVerifier{}, "bearer good-user", http.StatusOK},
		{"missing header", &stubVerifier{}, "", http.StatusUnauthorized},
		{"wrong scheme", &stubVerifier{}, "Basic good-user", http.StatusUnauthorized},
		{"empty token", &stubVerifier{}, "Bearer  ", http.StatusUnauthorized},
		{"invalid token", &stubVerifier{}, "Bearer forged", http.StatusUnauthorized},
		{"blacklisted", &stubVerifier{blacklisted: true}, "Bearer good-user", http.StatusUnauthorized},
		{"blacklist unavailable", &stubVerifier{blacklistErr: errors.New("down")}, "Bearer good-user", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, called := guarded(server.NewGuard(tt.verifier, server.GuardConfig{}))
			rec := serveWithHeader(h, "Authorization", tt.header)
			require.Equal(t, tt.expected, rec.Code)
			require.Equal(t, tt.expected == http.StatusOK, *called)
		})
	}
}

func TestGuard_CustomHeaderAndScheme(t *testing.T) {
	g := server.NewGuard(&stubVerifier{}, server.GuardConfig{Header: "X-Access-Token", Scheme: "Token"})
	h, _ := guarded(g)

	require.Equal(t, http.StatusOK, serveWithHeader(h, "X-Access-Token", "Token good-user").Code)
	require.Equal(t, http.StatusUnauthorized, serveWithHeader(h, "Authorization", "Bearer good-user").Code)
}

func TestGuard_AllowedRoles(t *testing.T) {
	g := server.NewGuard(&stubVerifier{}, server.GuardConfig{}).WithRoles(users.RoleAdmin)
	h, _ := guarded(g)

	require.Equal(t, http.StatusOK, serveWithHeader(h, "Authorization", "Bearer good-admin").Code)
	require.Equal(t, http.StatusForbidden, serveWithHeader(h, "Authorization", "Bearer good-user").Code)
}
