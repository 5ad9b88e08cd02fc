package refreshrepofake

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-sessions/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

var ErrInjected = errors.New("injected store failure")

type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.Record // token hash to record
	lock   sync.RWMutex
	now    func() time.Time

	failSaves int
	failReads int
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.Record),
		now:    time.Now,
	}
}

// FailNextSaves makes the next n Save calls fail.
func (tr *FakeRefreshTokenRepo) FailNextSaves(n int) {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.failSaves = n
}

// FailNextReads makes the next n FindValid calls fail.
func (tr *FakeRefreshTokenRepo) FailNextReads(n int) {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.failReads = n
}

func (tr *FakeRefreshTokenRepo) revokeLocked(rec *refresh.Record) bool {
	if rec.IsRevoked {
		return false
	}
	now := tr.now()
	rec.IsRevoked = true
	rec.RevokedAt = &now
	return true
}

func (tr *FakeRefreshTokenRepo) Save(_ context.Context, rec *refresh.Record) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if tr.failSaves > 0 {
		tr.failSaves--
		return ErrInjected
	}
	if _, exists := tr.tokens[rec.TokenHash]; exists {
		return errors.New("duplicate token hash")
	}

	for _, existing := range tr.tokens {
		if existing.UserID == rec.UserID && existing.DeviceID == rec.DeviceID {
			tr.revokeLocked(existing)
		}
	}

	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = tr.now()
	}
	tr.tokens[rec.TokenHash] = &stored
	return nil
}

func (tr *FakeRefreshTokenRepo) FindValid(_ context.Context, tokenHash, userID, deviceID string, now time.Time) (*refresh.Record, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if tr.failReads > 0 {
		tr.failReads--
		return nil, ErrInjected
	}

	rec, ok := tr.tokens[tokenHash]
	if !ok || rec.IsRevoked || rec.UserID != userID || rec.DeviceID != deviceID || !rec.ExpiresAt.After(now) {
		return nil, refresh.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (tr *FakeRefreshTokenRepo) Revoke(_ context.Context, tokenHash string) (bool, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rec, ok := tr.tokens[tokenHash]
	if !ok {
		return false, nil
	}
	return tr.revokeLocked(rec), nil
}

func (tr *FakeRefreshTokenRepo) RevokeAllForDevice(_ context.Context, userID, deviceID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for _, rec := range tr.tokens {
		if rec.UserID == userID && rec.DeviceID == deviceID {
			tr.revokeLocked(rec)
		}
	}
	return nil
}

func (tr *FakeRefreshTokenRepo) RevokeAllForUser(_ context.Context, userID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for _, rec := range tr.tokens {
		if rec.UserID == userID {
			tr.revokeLocked(rec)
		}
	}
	return nil
}

// List returns copies of every record for userID ordered by creation time.
func (tr *FakeRefreshTokenRepo) List(userID string) []refresh.Record {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	records := make([]refresh.Record, 0)
	for _, rec := range tr.tokens {
		if rec.UserID == userID {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

// ActiveCount returns the number of non-revoked records for the device.
func (tr *FakeRefreshTokenRepo) ActiveCount(userID, deviceID string) int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	n := 0
	for _, rec := range tr.tokens {
		if rec.UserID == userID && rec.DeviceID == deviceID && !rec.IsRevoked {
			n++
		}
	}
	return n
}
