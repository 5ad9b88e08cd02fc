package fakeuserrepo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-sessions/users"
)

var _ users.Directory = (*FakeUserRepo)(nil)

// ErrInjected is returned by lookups while failures are injected.
var ErrInjected = errors.New("injected directory failure")

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex

	failLookups    int // number of upcoming lookups that fail with ErrInjected
	lookups        int
	passwordChecks int
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

// Upsert stores user as-is, assigning an ID when missing. The email is
// normalized and PasswordHash must already be set.
func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = users.NormalizeEmail(user.Email)
	ur.users[user.ID] = user
	ur.emailIds[user.Email] = user.ID
	return nil
}

// FailNextLookups makes the next n GetByEmail/GetByID calls fail.
func (ur *FakeUserRepo) FailNextLookups(n int) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.failLookups = n
}

// Lookups returns the number of GetByEmail/GetByID calls made so far.
func (ur *FakeUserRepo) Lookups() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.lookups
}

func (ur *FakeUserRepo) injectedFailure() error {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.lookups++
	if ur.failLookups > 0 {
		ur.failLookups--
		return ErrInjected
	}
	return nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	if err := ur.injectedFailure(); err != nil {
		return nil, err
	}

	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[users.NormalizeEmail(email)]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *ur.users[id]
	return &copied, nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	if err := ur.injectedFailure(); err != nil {
		return nil, err
	}

	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// PasswordChecks returns the number of VerifyPassword calls made so far.
func (ur *FakeUserRepo) PasswordChecks() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.passwordChecks
}

func (ur *FakeUserRepo) VerifyPassword(user *users.User, plaintext string) bool {
	ur.lock.Lock()
	ur.passwordChecks++
	ur.lock.Unlock()

	if user == nil {
		return false
	}
	return users.CheckPasswordHash(plaintext, user.PasswordHash)
}

func (ur *FakeUserRepo) Create(_ context.Context, registration users.Registration) (*users.User, error) {
	hash, err := users.HashPassword(registration.Password)
	if err != nil {
		return nil, err
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	email := users.NormalizeEmail(registration.Email)
	if _, ok := ur.emailIds[email]; ok {
		return nil, users.ErrDuplicateEmail
	}

	role := registration.Role
	if role == "" {
		role = users.RoleUser
	}
	user := &users.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    registration.FirstName,
		LastName:     registration.LastName,
		DateJoined:   time.Now().UTC(),
	}
	ur.users[user.ID] = user
	ur.emailIds[email] = user.ID

	copied := *user
	return &copied, nil
}
