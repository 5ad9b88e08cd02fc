package refreshrepofake_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-sessions/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-auth-sessions/token/refresh/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(hash, userID, deviceID string, expiresAt time.Time) *refresh.Record {
	return &refresh.Record{
		ID:        "id-" + hash,
		TokenHash: hash,
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: expiresAt,
	}
}

func TestFakeRepo_SaveRevokesPreviousDeviceRecord(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, repo.Save(ctx, record("h1", "u1", "dev1", exp)))
	require.NoError(t, repo.Save(ctx, record("h2", "u1", "dev2", exp)))
	require.NoError(t, repo.Save(ctx, record("h3", "u1", "dev1", exp)))

	require.Equal(t, 1, repo.ActiveCount("u1", "dev1"))
	require.Equal(t, 1, repo.ActiveCount("u1", "dev2"))

	_, err := repo.FindValid(ctx, "h1", "u1", "dev1", time.Now())
	require.ErrorIs(t, err, refresh.ErrNotFound)

	rec, err := repo.FindValid(ctx, "h3", "u1", "dev1", time.Now())
	require.NoError(t, err)
	require.Equal(t, "id-h3", rec.ID)
	require.Len(t, repo.List("u1"), 3, "records are revoked, never deleted")
}

func TestFakeRepo_FindValidChecksBindingAndExpiry(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Save(ctx, record("h1", "u1", "dev1", now.Add(time.Minute))))

	_, err := repo.FindValid(ctx, "h1", "u2", "dev1", now)
	require.ErrorIs(t, err, refresh.ErrNotFound)
	_, err = repo.FindValid(ctx, "h1", "u1", "dev2", now)
	require.ErrorIs(t, err, refresh.ErrNotFound)
	_, err = repo.FindValid(ctx, "h1", "u1", "dev1", now.Add(time.Minute))
	require.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestFakeRepo_RevokeIsIdempotentAndSingleWinner(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, record("h1", "u1", "dev1", time.Now().Add(time.Hour))))

	const workers = 16
	var winners atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			ok, err := repo.Revoke(ctx, "h1")
			assert.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), winners.Load())

	require.NoError(t, repo.RevokeAllForDevice(ctx, "u1", "dev1"))
	require.NoError(t, repo.RevokeAllForDevice(ctx, "u1", "dev1"))
}

func TestFakeRepo_ConcurrentSavesLeaveOneLiveRecord(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Save(ctx, record(fmt.Sprintf("h%d", i), "u1", "dev1", exp)))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, repo.ActiveCount("u1", "dev1"))
}

func TestFakeRepo_RevokeAllForUser(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, repo.Save(ctx, record("h1", "u1", "dev1", exp)))
	require.NoError(t, repo.Save(ctx, record("h2", "u1", "dev2", exp)))
	require.NoError(t, repo.Save(ctx, record("h3", "u2", "dev1", exp)))

	require.NoError(t, repo.RevokeAllForUser(ctx, "u1"))
	require.Zero(t, repo.ActiveCount("u1", "dev1"))
	require.Zero(t, repo.ActiveCount("u1", "dev2"))
	require.Equal(t, 1, repo.ActiveCount("u2", "dev1"))
}
