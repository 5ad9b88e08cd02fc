package token

import (
	"github.com/golang-jwt/jwt/v5"
)

const TokenTypeBearer = "Bearer"

// AccessClaims are carried by the short-lived access token. The registered
// ID (jti) is the blacklist key.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by the long-lived refresh token, which is signed
// with a different secret than the access token.
type RefreshClaims struct {
	DeviceID string `json:"deviceId"`
	jwt.RegisteredClaims
}

// TokenPair is returned by login, register and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // Access token lifetime in whole seconds
	TokenType    string `json:"tokenType"`
}
