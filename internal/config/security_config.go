package config

import "time"

type SecurityConfig interface {
	GetLoginMaxAttempts() int
	GetLoginLockoutWindow() time.Duration
	GetRevokeSessionsOnLockout() bool
	GetCacheOpTimeout() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetLoginMaxAttempts() int {
	return GetEnvInt("LOGIN_MAX_ATTEMPTS", 5)
}

func (Security) GetLoginLockoutWindow() time.Duration {
	return GetEnvDuration("LOGIN_LOCKOUT_WINDOW", 300*time.Second)
}

// GetRevokeSessionsOnLockout is off unless enabled. When on, anyone who knows
// an email can sign that user out everywhere by failing logins.
func (Security) GetRevokeSessionsOnLockout() bool {
	return GetEnvBool("REVOKE_SESSIONS_ON_LOCKOUT", false)
}

func (Security) GetCacheOpTimeout() time.Duration {
	return GetEnvDuration("CACHE_OP_TIMEOUT", 250*time.Millisecond)
}
