package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/model"
)

var columns = []string{"id", "name", "email", "avatar_key", "created_at", "updated_at"}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *UserStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock, NewUserStore(mock)
}

func TestCreate(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.NewString()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(id, "Ada", "ada@x.com", "").
		WillReturnRows(mock.NewRows(columns).AddRow(id, "Ada", "ada@x.com", "", now, now))

	u, err := store.Create(context.Background(), &model.User{ID: id, Name: "Ada", Email: "ada@x.com"})

	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, now, u.CreatedAt)
}

func TestCreateUniqueViolation(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(id, "Ada", "ada@x.com", "").
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			TableName:      "users",
			ConstraintName: "users_email_key",
		})

	_, err := store.Create(context.Background(), &model.User{ID: id, Name: "Ada", Email: "ada@x.com"})

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errs.KindConflict, e.Kind)
	assert.Equal(t, map[string]string{"email": "already exists"}, e.Details)
}

func TestFindByIDNotFound(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name")).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.FindByID(context.Background(), id)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = store.FindByID(context.Background(), "not-a-uuid")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestFindByEmailUnavailable(t *testing.T) {
	mock, store := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE lower(email) = lower($1)")).
		WithArgs("ada@x.com").
		WillReturnError(&pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"})

	_, err := store.FindByEmail(context.Background(), "ada@x.com")
	assert.Equal(t, errs.KindUnavailable, errs.KindOf(err))
}

func TestUpdate(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.NewString()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users")).
		WithArgs(id, "Ada L", "ada@x.com", "avatars/"+id).
		WillReturnRows(mock.NewRows(columns).AddRow(id, "Ada L", "ada@x.com", "avatars/"+id, now, now))

	u, err := store.Update(context.Background(), &model.User{ID: id, Name: "Ada L", Email: "ada@x.com", AvatarKey: "avatars/" + id})

	require.NoError(t, err)
	assert.Equal(t, "avatars/"+id, u.AvatarKey)
}

func TestDelete(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.NewString()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.NoError(t, store.Delete(context.Background(), id))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(store.Delete(context.Background(), id)))
}

func TestDeadlineIsTimeout(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name")).
		WithArgs(id).
		WillReturnError(context.DeadlineExceeded)

	_, err := store.FindByID(context.Background(), id)
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
}

func TestPing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(&pgconn.ConnectError{})
	store := NewUserStore(mock)

	assert.Equal(t, errs.KindUnavailable, errs.KindOf(store.Ping(context.Background())))
	assert.NoError(t, mock.ExpectationsWereMet())
}
