package pgrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-auth-sessions/users"
	"github.com/oklog/ulid/v2"
	pkgerrors "github.com/pkg/errors"
)

const uniqueViolation = "23505"

var _ users.Directory = (*UserRepo)(nil)

// UserRepo implements users.Directory using PostgreSQL.
type UserRepo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const selectUser = `
	SELECT id, email, password_hash, role, first_name, last_name, created_at
	FROM users
`

func scanUser(row pgx.Row) (*users.User, error) {
	var u users.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.FirstName, &u.LastName, &u.DateJoined)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = users.RoleType(role)
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+`WHERE LOWER(email) = $1`, users.NormalizeEmail(email)))
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, pkgerrors.Wrap(err, "[UserRepo.GetByEmail]")
	}
	return u, err
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+`WHERE id = $1`, id))
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, pkgerrors.Wrap(err, "[UserRepo.GetByID]")
	}
	return u, err
}

func (r *UserRepo) VerifyPassword(user *users.User, plaintext string) bool {
	if user == nil {
		return false
	}
	return users.CheckPasswordHash(plaintext, user.PasswordHash)
}

func (r *UserRepo) Create(ctx context.Context, registration users.Registration) (*users.User, error) {
	hash, err := users.HashPassword(registration.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[UserRepo.Create] hash password")
	}

	role := registration.Role
	if role == "" {
		role = users.RoleUser
	}
	u := &users.User{
		ID:           ulid.Make().String(),
		Email:        users.NormalizeEmail(registration.Email),
		PasswordHash: hash,
		Role:         role,
		FirstName:    registration.FirstName,
		LastName:     registration.LastName,
		DateJoined:   time.Now().UTC(),
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.PasswordHash, string(u.Role), u.FirstName, u.LastName, u.DateJoined)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, users.ErrDuplicateEmail
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[UserRepo.Create] insert")
	}
	return u, nil
}
