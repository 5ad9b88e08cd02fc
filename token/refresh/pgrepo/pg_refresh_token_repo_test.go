package pgrepo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-sessions/internal/database/dbtest"
	"github.com/jrsteele09/go-auth-sessions/token/refresh"
	"github.com/jrsteele09/go-auth-sessions/token/refresh/pgrepo"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(userID, deviceID string, expiresIn time.Duration) *refresh.Record {
	id := ulid.Make().String()
	return &refresh.Record{
		ID:        id,
		TokenHash: refresh.HashToken("token-" + id),
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(expiresIn),
	}
}

func setupRepo(t *testing.T) (*pgrepo.RefreshTokenRepo, string) {
	t.Helper()
	return pgrepo.New(dbtest.NewPool(t)), "user-" + ulid.Make().String()
}

func TestRefreshTokenRepo_SaveReplacesDeviceRecord(t *testing.T) {
	repo, userID := setupRepo(t)
	ctx := context.Background()

	first := newRecord(userID, "dev1", time.Hour)
	second := newRecord(userID, "dev1", time.Hour)
	other := newRecord(userID, "dev2", time.Hour)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, other))

	n, err := repo.ActiveCount(ctx, userID, "dev1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = repo.FindValid(ctx, first.TokenHash, userID, "dev1", time.Now())
	require.ErrorIs(t, err, refresh.ErrNotFound)

	rec, err := repo.FindValid(ctx, second.TokenHash, userID, "dev1", time.Now())
	require.NoError(t, err)
	require.Equal(t, second.ID, rec.ID)
	require.False(t, rec.IsRevoked)
}

func TestRefreshTokenRepo_FindValidBinding(t *testing.T) {
	repo, userID := setupRepo(t)
	ctx := context.Background()

	rec := newRecord(userID, "dev1", time.Hour)
	require.NoError(t, repo.Save(ctx, rec))

	_, err := repo.FindValid(ctx, rec.TokenHash, userID, "dev2", time.Now())
	require.ErrorIs(t, err, refresh.ErrNotFound)
	_, err = repo.FindValid(ctx, rec.TokenHash, "someone-else", "dev1", time.Now())
	require.ErrorIs(t, err, refresh.ErrNotFound)
	_, err = repo.FindValid(ctx, rec.TokenHash, userID, "dev1", time.Now().Add(2*time.Hour))
	require.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestRefreshTokenRepo_RevokeOnce(t *testing.T) {
	repo, userID := setupRepo(t)
	ctx := context.Background()

	rec := newRecord(userID, "dev1", time.Hour)
	require.NoError(t, repo.Save(ctx, rec))

	revoked, err := repo.Revoke(ctx, rec.TokenHash)
	require.NoError(t, err)
	require.True(t, revoked)

	revoked, err = repo.Revoke(ctx, rec.TokenHash)
	require.NoError(t, err)
	require.False(t, revoked)

	revoked, err = repo.Revoke(ctx, refresh.HashToken("unknown"))
	require.NoError(t, err)
	require.False(t, revoked)
}

// TestRefreshTokenRepo_ConcurrentRevoke races revokes of one record; exactly one wins
func TestRefreshTokenRepo_ConcurrentRevoke(t *testing.T) {
	repo, userID := setupRepo(t)
	ctx := context.Background()

	rec := newRecord(userID, "dev1", time.Hour)
	require.NoError(t, repo.Save(ctx, rec))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			revoked, err := repo.Revoke(ctx, rec.TokenHash)
			assert.NoError(t, err)
			if revoked {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

// TestRefreshTokenRepo_ConcurrentSave races saves for one device; one live record must remain
func TestRefreshTokenRepo_ConcurrentSave(t *testing.T) {
	repo, userID := setupRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Save(ctx, newRecord(userID, "dev1", time.Hour)))
		}()
	}
	wg.Wait()

	n, err := repo.ActiveCount(ctx, userID, "dev1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRefreshTokenRepo_RevokeAll(t *testing.T) {
	repo, userID := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newRecord(userID, "dev1", time.Hour)))
	require.NoError(t, repo.Save(ctx, newRecord(userID, "dev2", time.Hour)))

	require.NoError(t, repo.RevokeAllForDevice(ctx, userID, "dev1"))
	require.NoError(t, repo.RevokeAllForDevice(ctx, userID, "dev1"))
	n, err := repo.ActiveCount(ctx, userID, "dev1")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.NoError(t, repo.RevokeAllForUser(ctx, userID))
	n, err = repo.ActiveCount(ctx, userID, "dev2")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
