package users_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-sessions/users"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RejectsLongPasswords(t *testing.T) {
	_, err := users.HashPassword(strings.Repeat("a", users.MaxPasswordBytes+1))
	require.ErrorIs(t, err, users.ErrPasswordTooLong)

	hash, err := users.HashPassword(strings.Repeat("a", users.MaxPasswordBytes))
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash(strings.Repeat("a", users.MaxPasswordBytes), hash))
}

func TestPlaceholderUser(t *testing.T) {
	placeholder := users.PlaceholderUser()
	require.Empty(t, placeholder.ID)
	require.NotEmpty(t, placeholder.PasswordHash)
	require.Equal(t, placeholder.PasswordHash, users.PlaceholderUser().PasswordHash)
	require.False(t, users.CheckPasswordHash("", placeholder.PasswordHash))
	require.False(t, users.CheckPasswordHash("P1!", placeholder.PasswordHash))
}
