package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jrsteele09/go-auth-sessions/auth"
	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
	"github.com/jrsteele09/go-auth-sessions/users"
)

const (
	contentTypeJSON  = "application/json; charset=utf-8"
	maxJSONBodyBytes = 1 << 20

	healthCheckTimeout = 2 * time.Second
)

// Error codes returned in the "error" field
const (
	errorInvalidRequest     = "invalid_request"
	errorInvalidCredentials = "invalid_credentials"
	errorAccountLocked      = "account_locked"
	errorDuplicateEmail     = "duplicate_email"
	errorInvalidToken       = "invalid_token"
	errorForbidden          = "forbidden"
	errorUnavailable        = "temporarily_unavailable"
	errorServer             = "server_error"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	DeviceID  string `json:"deviceId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	DeviceID     string `json:"deviceId"`
}

type logoutRequest struct {
	DeviceID string `json:"deviceId"`
}

type meResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSONError(w, errorInvalidRequest, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// requireFields takes name/value pairs and rejects the request at the first
// blank value.
func requireFields(w http.ResponseWriter, fields ...[2]string) bool {
	for _, field := range fields {
		if strings.TrimSpace(field[1]) == "" {
			writeJSONError(w, errorInvalidRequest, field[0]+" is required", http.StatusBadRequest)
			return false
		}
	}
	return true
}

// writeAuthError maps the auth error kinds to HTTP responses.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	var lockedErr *auth.AccountLockedError
	switch {
	case errors.As(err, &lockedErr):
		if lockedErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(lockedErr.RetryAfter/time.Second), 10))
		}
		writeJSONError(w, errorAccountLocked, "Account temporarily locked", http.StatusTooManyRequests)
	case apperrors.Is(err, apperrors.ErrAccountLocked):
		writeJSONError(w, errorAccountLocked, "Account temporarily locked", http.StatusTooManyRequests)
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		writeJSONError(w, errorInvalidCredentials, "Invalid email or password", http.StatusUnauthorized)
	case apperrors.Is(err, apperrors.ErrDuplicateEmail):
		writeJSONError(w, errorDuplicateEmail, "Email already registered", http.StatusConflict)
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		writeJSONError(w, errorInvalidRequest, "Password must be at most 72 bytes", http.StatusBadRequest)
	case apperrors.Is(err, apperrors.ErrInvalidToken):
		writeJSONError(w, errorInvalidToken, "Invalid token", http.StatusUnauthorized)
	case apperrors.Is(err, apperrors.ErrUpstreamUnavailable):
		sentry.CaptureException(err)
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, errorUnavailable, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		sentry.CaptureException(err)
		s.logger.Error().Err(err).Msg("unexpected auth error")
		writeJSONError(w, errorServer, "Internal server error", http.StatusInternalServerError)
	}
}

// LoginHandler authenticates email and password and returns a token pair
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if !requireFields(w, [2]string{"email", body.Email}, [2]string{"password", body.Password}, [2]string{"deviceId", body.DeviceID}) {
			return
		}

		pair, err := s.auth.Login(r.Context(), body.Email, body.Password, body.DeviceID)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

// RegisterHandler creates a user and returns a token pair. New users always
// get the default role.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if !requireFields(w, [2]string{"email", body.Email}, [2]string{"password", body.Password}, [2]string{"deviceId", body.DeviceID}) {
			return
		}
		if !strings.Contains(body.Email, "@") {
			writeJSONError(w, errorInvalidRequest, "email is invalid", http.StatusBadRequest)
			return
		}

		pair, err := s.auth.Register(r.Context(), users.Registration{
			Email:     body.Email,
			Password:  body.Password,
			FirstName: body.FirstName,
			LastName:  body.LastName,
			Role:      users.RoleUser,
		}, body.DeviceID)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, pair)
	}
}

// RefreshHandler rotates a refresh token
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body refreshRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if !requireFields(w, [2]string{"refreshToken", body.RefreshToken}, [2]string{"deviceId", body.DeviceID}) {
			return
		}

		pair, err := s.auth.Refresh(r.Context(), strings.TrimSpace(body.RefreshToken), body.DeviceID)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

// LogoutHandler ends the session of the device. Must run behind the Guard.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeJSONError(w, errorInvalidToken, "Missing access token", http.StatusUnauthorized)
			return
		}

		var body logoutRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if !requireFields(w, [2]string{"deviceId", body.DeviceID}) {
			return
		}

		if err := s.auth.Logout(r.Context(), claims.Subject, AccessTokenFromContext(r.Context()), body.DeviceID); err != nil {
			s.writeAuthError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the identity carried by the access token
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeJSONError(w, errorInvalidToken, "Missing access token", http.StatusUnauthorized)
			return
		}

		resp := meResponse{
			ID:    claims.Subject,
			Email: claims.Email,
			Role:  claims.Role,
		}
		if claims.ExpiresAt != nil {
			resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// PreflightHandler answers CORS preflight requests; the headers are set by CorsMiddleware
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthHandler runs every registered dependency check
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(s.healthChecks))
		for name, check := range s.healthChecks {
			if err := check(ctx); err != nil {
				s.logger.Warn().Err(err).Str("check", name).Msg("health check failed")
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{
			"status": overall,
			"checks": checks,
		})
	}
}
