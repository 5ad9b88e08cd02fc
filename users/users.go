package users

import (
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is carried in the access token's role claim
type RoleType string

const (
	RoleAdmin RoleType = "admin"
	RoleUser  RoleType = "user"
)

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Email        string    `json:"email,omitempty"`       // Lowercased email address
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	Role         RoleType  `json:"role,omitempty"`        // Role embedded in access tokens
	FirstName    string    `json:"first_name,omitempty"`  // First name of the user
	LastName     string    `json:"last_name,omitempty"`   // Last name of the user
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
}

// Registration is the input for creating a user.
type Registration struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Role      RoleType `json:"role,omitempty"`
}

// NormalizeEmail lowercases and trims an email address. Emails are stored in
// this form, so lookups must normalize first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// ValidatePassword rejects passwords bcrypt cannot hash.
func ValidatePassword(password string) error {
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	return string(bytes), err
}

// placeholderHash is a bcrypt hash at the same cost as stored passwords.
var placeholderHash = sync.OnceValue(func() string {
	hash, err := HashPassword("placeholder-password-for-timing-only")
	if err != nil {
		panic(err)
	}
	return hash
})

// PlaceholderUser returns a user that owns no account. Verifying a password
// against it costs the same bcrypt work as verifying a real user, so a
// missing account answers as slowly as a wrong password.
func PlaceholderUser() *User {
	return &User{PasswordHash: placeholderHash()}
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
