package sqlerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/layered-api/internal/errs"
)

func TestMapCode(t *testing.T) {
	tests := []struct {
		sqlstate string
		want     Code
	}{
		{"23505", UniqueViolation},
		{"23502", NotNullViolation},
		{"08006", ConnectionException},
		{"53300", InsufficientResources},
		{"57014", QueryCanceled},
		{"XX000", Other},
	}
	for _, tt := range tests {
		t.Run(tt.sqlstate, func(t *testing.T) {
			assert.Equal(t, tt.want, MapCode(tt.sqlstate))
		})
	}
}

func TestMapSeverity(t *testing.T) {
	assert.Equal(t, SeverityFatal, MapSeverity("fatal"))
	assert.Equal(t, SeverityError, MapSeverity("unheard-of"))
}

func TestExtractColumnForUniqueViolation(t *testing.T) {
	assert.Equal(t, "email", extractColumnForUniqueViolation("users_email_key"))
	assert.Equal(t, "email", extractColumnForUniqueViolation("unique_users_email"))
	assert.Equal(t, "", extractColumnForUniqueViolation("pk"))
	assert.Equal(t, "", extractColumnForUniqueViolation(""))
}

func TestHandleErrorUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		Severity:       "ERROR",
		TableName:      "users",
		ConstraintName: "users_email_key",
		Message:        "duplicate key value violates unique constraint",
	}

	err := HandleError("postgres.users.create", fmt.Errorf("insert: %w", pgErr))

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errs.KindConflict, e.Kind)
	assert.Equal(t, "A user with this email already exists", e.Message)
	assert.Equal(t, map[string]string{"email": "already exists"}, e.Details)
	assert.Equal(t, UniqueViolation, ErrCode(err))

	var back *pgconn.PgError
	assert.True(t, errors.As(err, &back), "driver error stays reachable for logs")
}

func TestHandleErrorMessagesAreLowerCase(t *testing.T) {
	tests := []struct {
		name string
		err  *pgconn.PgError
		want string
	}{
		{"foreign key", &pgconn.PgError{Code: "23503", ColumnName: "user_id"}, "The referenced user does not exist"},
		{"not null", &pgconn.PgError{Code: "23502", ColumnName: "first_name"}, "The first name is required"},
		{"check", &pgconn.PgError{Code: "23514", ColumnName: "email"}, "The email value does not meet required conditions"},
		{"unique without column", &pgconn.PgError{Code: "23505", TableName: "users"}, "A user with this identifier already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e *errs.Error
			require.True(t, errors.As(HandleError("op", tt.err), &e))
			assert.Equal(t, tt.want, e.Message)
		})
	}
}

func TestHandleErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"no rows", pgx.ErrNoRows, errs.KindNotFound},
		{"deadline", context.DeadlineExceeded, errs.KindTimeout},
		{"query canceled", &pgconn.PgError{Code: "57014"}, errs.KindTimeout},
		{"not null", &pgconn.PgError{Code: "23502", ColumnName: "name"}, errs.KindValidation},
		{"foreign key", &pgconn.PgError{Code: "23503", TableName: "users"}, errs.KindService},
		{"connection", &pgconn.PgError{Code: "08006"}, errs.KindUnavailable},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, errs.KindUnavailable},
		{"connect error", &pgconn.ConnectError{}, errs.KindUnavailable},
		{"syntax", &pgconn.PgError{Code: "42601"}, errs.KindInternal},
		{"unknown", errors.New("boom"), errs.KindInternal},
		{"already translated", errs.NewNotFoundError("User not found"), errs.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.KindOf(HandleError("op", tt.err)))
		})
	}

	assert.NoError(t, HandleError("op", nil))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "First Name", humanizeText("first_name"))
	assert.Equal(t, "User", getEntityName("", "user_id"))
	assert.Equal(t, "Order", getEntityName("orders", ""))
	assert.Equal(t, "record", getEntityName("", ""))
}
