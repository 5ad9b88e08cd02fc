package config

type TokenConfig interface {
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	// Durations use a number followed by s, m, h, d or w, e.g. "15m" or "7d".
	GetAccessTokenExpiry() string
	GetRefreshTokenExpiry() string
	GetTokenIssuer() string
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetAccessTokenSecret() string {
	return GetEnv("ACCESS_TOKEN_SECRET", "")
}

func (Tokens) GetRefreshTokenSecret() string {
	return GetEnv("REFRESH_TOKEN_SECRET", "")
}

func (Tokens) GetAccessTokenExpiry() string {
	return GetEnv("ACCESS_TOKEN_EXPIRY", "15m")
}

func (Tokens) GetRefreshTokenExpiry() string {
	return GetEnv("REFRESH_TOKEN_EXPIRY", "7d")
}

func (Tokens) GetTokenIssuer() string {
	return GetEnv("TOKEN_ISSUER", "go-auth-sessions")
}
