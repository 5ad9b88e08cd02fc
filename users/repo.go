package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// Directory is the user store consulted by the auth core. Lookups return
// ErrNotFound when the user does not exist; any other error is an I/O failure.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	VerifyPassword(user *User, plaintext string) bool
	// Create hashes the password and stores the user, failing with
	// ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, registration Registration) (*User, error)
}
