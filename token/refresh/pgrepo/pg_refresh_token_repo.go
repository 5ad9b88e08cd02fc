package pgrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-auth-sessions/token/refresh"
	pkgerrors "github.com/pkg/errors"
)

var _ refresh.Repo = (*RefreshTokenRepo)(nil)

// RefreshTokenRepo implements refresh.Repo using PostgreSQL. Writes for one
// (user, device) are serialized with a transaction scoped advisory lock, and
// the partial unique index refresh_tokens_active_device_key rejects a second
// live record should anything bypass it.
type RefreshTokenRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(pool *pgxpool.Pool) *RefreshTokenRepo {
	return &RefreshTokenRepo{pool: pool, now: time.Now}
}

func lockDevice(ctx context.Context, tx pgx.Tx, userID, deviceID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`, userID, deviceID)
	return err
}

func (r *RefreshTokenRepo) Save(ctx context.Context, rec *refresh.Record) error {
	now := r.now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockDevice(ctx, tx, rec.UserID, rec.DeviceID); err != nil {
			return pkgerrors.Wrap(err, "lock device")
		}

		if _, err := tx.Exec(ctx, `
			UPDATE refresh_tokens
			SET is_revoked = TRUE, revoked_at = $3
			WHERE user_id = $1 AND device_id = $2 AND NOT is_revoked
		`, rec.UserID, rec.DeviceID, now); err != nil {
			return pkgerrors.Wrap(err, "revoke live records")
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO refresh_tokens (id, token_hash, user_id, device_id, expires_at, is_revoked, created_at)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		`, rec.ID, rec.TokenHash, rec.UserID, rec.DeviceID, rec.ExpiresAt.UTC(), createdAt); err != nil {
			return pkgerrors.Wrap(err, "insert record")
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(err, "[RefreshTokenRepo.Save]")
	}
	return nil
}

func (r *RefreshTokenRepo) FindValid(ctx context.Context, tokenHash, userID, deviceID string, now time.Time) (*refresh.Record, error) {
	var rec refresh.Record
	err := r.pool.QueryRow(ctx, `
		SELECT id, token_hash, user_id, device_id, expires_at, is_revoked, created_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
		  AND user_id = $2
		  AND device_id = $3
		  AND NOT is_revoked
		  AND expires_at > $4
	`, tokenHash, userID, deviceID, now.UTC()).Scan(
		&rec.ID,
		&rec.TokenHash,
		&rec.UserID,
		&rec.DeviceID,
		&rec.ExpiresAt,
		&rec.IsRevoked,
		&rec.CreatedAt,
		&rec.RevokedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, refresh.ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[RefreshTokenRepo.FindValid]")
	}
	return &rec, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $2
		WHERE token_hash = $1 AND NOT is_revoked
	`, tokenHash, r.now().UTC())
	if err != nil {
		return false, pkgerrors.Wrap(err, "[RefreshTokenRepo.Revoke]")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RefreshTokenRepo) RevokeAllForDevice(ctx context.Context, userID, deviceID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $3
		WHERE user_id = $1 AND device_id = $2 AND NOT is_revoked
	`, userID, deviceID, r.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(err, "[RefreshTokenRepo.RevokeAllForDevice]")
	}
	return nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_at = $2
		WHERE user_id = $1 AND NOT is_revoked
	`, userID, r.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(err, "[RefreshTokenRepo.RevokeAllForUser]")
	}
	return nil
}

// ActiveCount returns the number of live records for a device.
func (r *RefreshTokenRepo) ActiveCount(ctx context.Context, userID, deviceID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE user_id = $1 AND device_id = $2 AND NOT is_revoked
	`, userID, deviceID).Scan(&n)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "[RefreshTokenRepo.ActiveCount]")
	}
	return n, nil
}
