// Package postgres implements the persistence capability on PostgreSQL
// through a pgx connection pool. Driver errors are translated by sqlerr.
package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/model"
	"github.com/deppfellow/layered-api/internal/sqlerr"
)

// DBTX is the subset of *pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// UserStore reads and writes the users table. The pool is owned by the
// database package and closed there. Emails are unique case-insensitively
// through the users_email_key index on lower(email).
type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, name, email, avatar_key, created_at, updated_at`

const (
	insertUser = `INSERT INTO users (id, name, email, avatar_key)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns

	selectUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	selectUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	updateUser = `UPDATE users
SET name = $2, email = $3, avatar_key = $4, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

	deleteUser = `DELETE FROM users WHERE id = $1`
)

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarKey, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// translate maps driver errors; a missing row is always "User not found".
func translate(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.NewNotFoundError("User not found")
	}
	return sqlerr.HandleError(op, err)
}

func (s *UserStore) Create(ctx context.Context, user *model.User) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, insertUser, user.ID, user.Name, user.Email, user.AvatarKey))
	if err != nil {
		return nil, translate("postgres.users.create", err)
	}
	return u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	// the id column is a uuid; anything else cannot exist
	if uuid.Validate(id) != nil {
		return nil, errs.NewNotFoundError("User not found")
	}
	u, err := scanUser(s.db.QueryRow(ctx, selectUserByID, id))
	if err != nil {
		return nil, translate("postgres.users.find_by_id", err)
	}
	return u, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, selectUserByEmail, email))
	if err != nil {
		return nil, translate("postgres.users.find_by_email", err)
	}
	return u, nil
}

func (s *UserStore) Update(ctx context.Context, user *model.User) (*model.User, error) {
	if uuid.Validate(user.ID) != nil {
		return nil, errs.NewNotFoundError("User not found")
	}
	u, err := scanUser(s.db.QueryRow(ctx, updateUser, user.ID, user.Name, user.Email, user.AvatarKey))
	if err != nil {
		return nil, translate("postgres.users.update", err)
	}
	return u, nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return errs.NewNotFoundError("User not found")
	}
	tag, err := s.db.Exec(ctx, deleteUser, id)
	if err != nil {
		return translate("postgres.users.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewNotFoundError("User not found")
	}
	return nil
}

// Ping checks the pool can reach the server.
func (s *UserStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return translate("postgres.ping", err)
	}
	return nil
}
