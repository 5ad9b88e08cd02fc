package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("refresh token record not found")

// Record is the server-side state of one issued refresh token. The token
// value itself is never stored, only its SHA-256 hash.
type Record struct {
	ID        string
	TokenHash string
	UserID    string
	DeviceID  string
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Repo is the durable store of refresh token records. Records are revoked,
// never deleted; retention is the store's own concern.
type Repo interface {
	// Save revokes any live record for (rec.UserID, rec.DeviceID) and inserts
	// rec, as one atomic step with respect to that device.
	Save(ctx context.Context, rec *Record) error
	// FindValid returns the live, unexpired record bound to tokenHash, userID
	// and deviceID, or ErrNotFound.
	FindValid(ctx context.Context, tokenHash, userID, deviceID string, now time.Time) (*Record, error)
	// Revoke marks the record revoked and reports whether this call performed
	// the transition. Only one of several concurrent callers observes true.
	Revoke(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllForDevice(ctx context.Context, userID, deviceID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// HashToken returns the hex SHA-256 of a refresh token value.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
