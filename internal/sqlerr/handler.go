package sqlerr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deppfellow/layered-api/internal/errs"
)

// ErrCode reports the Code of the first *Error or *pgconn.PgError in err's
// chain, or Other.
func ErrCode(err error) Code {
	var sqlErr *Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return MapCode(pgErr.Code)
	}
	return Other
}

// formatUserFriendlyMessage phrases a constraint failure for clients.
func formatUserFriendlyMessage(sqlErr *Error) string {
	// entity names sit mid-sentence, so they stay lower case
	entityName := strings.ToLower(getEntityName(sqlErr.TableName, sqlErr.ColumnName))

	switch sqlErr.Code {
	case ForeignKeyViolation:
		return fmt.Sprintf("The referenced %s does not exist", entityName)

	case UniqueViolation:
		// "identifier" is replaced once the column is known.
		return fmt.Sprintf("A %s with this identifier already exists", entityName)

	case NotNullViolation:
		fieldName := strings.ToLower(humanizeText(sqlErr.ColumnName))
		if fieldName == "" {
			fieldName = "field"
		}
		return fmt.Sprintf("The %s is required", fieldName)

	case CheckViolation:
		fieldName := strings.ToLower(humanizeText(sqlErr.ColumnName))
		if fieldName != "" {
			return fmt.Sprintf("The %s value does not meet required conditions", fieldName)
		}
		return "One or more values do not meet required conditions"

	default:
		return "An error occurred while processing your request"
	}
}

// getEntityName infers an entity name: "user_id" column -> "User", then the
// singularised table name, then "record".
func getEntityName(tableName, columnName string) string {
	if columnName != "" && strings.HasSuffix(strings.ToLower(columnName), "_id") {
		entity := strings.TrimSuffix(strings.ToLower(columnName), "_id")
		return humanizeText(entity)
	}

	if tableName != "" {
		entity := tableName
		if strings.HasSuffix(entity, "s") && len(entity) > 1 {
			entity = entity[:len(entity)-1]
		}
		return humanizeText(entity)
	}

	return "record"
}

// humanizeText converts snake_case into Title Case: "first_name" -> "First Name".
func humanizeText(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

var uniqueKeyPattern = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)

// extractColumnForUniqueViolation infers the column from a constraint name.
//
//  1. "unique_<table>_<column>", e.g. unique_users_email -> "email"
//  2. "<table>_<column>_(key|ukey)", e.g. users_email_key -> "email"
func extractColumnForUniqueViolation(constraintName string) string {
	if constraintName == "" {
		return ""
	}

	if strings.HasPrefix(constraintName, "unique_") {
		parts := strings.Split(constraintName, "_")
		if len(parts) >= 3 {
			return parts[len(parts)-1]
		}
	}

	if matches := uniqueKeyPattern.FindStringSubmatch(constraintName); len(matches) > 1 {
		return matches[1]
	}

	return ""
}

// HandleError translates an error returned by pgx into the errs taxonomy.
//
//   - *errs.Error: returned unchanged
//   - context expiry, query_canceled: TimeoutError
//   - unique violation: ConflictAlreadyExists with the column as detail
//   - not-null violation: ValidationError for the column
//   - foreign key / check violation: ServiceError
//   - connection failures and transient SQLSTATEs: BackendUnavailable
//   - pgx.ErrNoRows: NotFound
//   - anything else: InternalError
func HandleError(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *errs.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.NewTimeoutError(op, err)
	}

	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		sqlErr := ConvertPgError(pgerr)
		userMessage := formatUserFriendlyMessage(sqlErr)

		switch {
		case sqlErr.Code == UniqueViolation:
			column := extractColumnForUniqueViolation(sqlErr.ConstraintName)
			if column != "" {
				userMessage = strings.ReplaceAll(userMessage, "identifier", strings.ToLower(humanizeText(column)))
			}
			conflict := errs.NewConflictError(userMessage, strings.ToLower(column))
			conflict.Op, conflict.Err = op, sqlErr
			return conflict

		case sqlErr.Code == NotNullViolation:
			return &errs.Error{
				Kind:    errs.KindValidation,
				Message: userMessage,
				Details: map[string]string{strings.ToLower(sqlErr.ColumnName): "is required"},
				Op:      op,
				Err:     sqlErr,
			}

		case sqlErr.Code == ForeignKeyViolation, sqlErr.Code == CheckViolation:
			return &errs.Error{Kind: errs.KindService, Message: userMessage, Op: op, Err: sqlErr}

		case sqlErr.Code == QueryCanceled:
			return errs.NewTimeoutError(op, sqlErr)

		case sqlErr.Code.Transient():
			return errs.NewUnavailableError(op, sqlErr)

		default:
			return errs.NewInternalError(op, sqlErr)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return errs.NewNotFoundError("Resource not found")
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return errs.NewUnavailableError(op, err)
	}

	return errs.NewInternalError(op, err)
}
