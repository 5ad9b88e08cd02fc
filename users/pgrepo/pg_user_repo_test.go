package pgrepo_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-sessions/internal/database/dbtest"
	"github.com/jrsteele09/go-auth-sessions/users"
	"github.com/jrsteele09/go-auth-sessions/users/pgrepo"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func uniqueEmail() string {
	return strings.ToLower(ulid.Make().String()) + "@Example.com"
}

func TestUserRepo_CreateAndLookup(t *testing.T) {
	repo := pgrepo.New(dbtest.NewPool(t))
	ctx := context.Background()
	email := uniqueEmail()

	created, err := repo.Create(ctx, users.Registration{Email: email, Password: "secret", FirstName: "Ada"})
	require.NoError(t, err)
	require.Equal(t, users.NormalizeEmail(email), created.Email)
	require.Equal(t, users.RoleUser, created.Role)
	require.NotEqual(t, "secret", created.PasswordHash)

	byEmail, err := repo.GetByEmail(ctx, strings.ToUpper(email))
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)
	require.True(t, repo.VerifyPassword(byEmail, "secret"))
	require.False(t, repo.VerifyPassword(byEmail, "wrong"))

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada", byID.FirstName)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	repo := pgrepo.New(dbtest.NewPool(t))
	ctx := context.Background()
	email := uniqueEmail()

	_, err := repo.Create(ctx, users.Registration{Email: email, Password: "secret"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, users.Registration{Email: strings.ToUpper(email), Password: "other"})
	require.ErrorIs(t, err, users.ErrDuplicateEmail)
}

func TestUserRepo_NotFound(t *testing.T) {
	repo := pgrepo.New(dbtest.NewPool(t))
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, uniqueEmail())
	require.ErrorIs(t, err, users.ErrNotFound)
	_, err = repo.GetByID(ctx, ulid.Make().String())
	require.ErrorIs(t, err, users.ErrNotFound)
}
