// Package sqlerr specifically handles database driver errors.
//
// It parses cryptic SQLSTATE codes from the pgx driver and converts them into
// the application's error taxonomy (e.g., a unique violation becomes a
// ConflictAlreadyExists naming the offending field), so no driver type ever
// leaks past the persistence adapter.
package sqlerr

import (
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Code is a friendly name for the SQLSTATE values the adapters care about.
type Code string

const (
	Other                 Code = "other"
	NotNullViolation      Code = "not_null_violation"
	ForeignKeyViolation   Code = "foreign_key_violation"
	UniqueViolation       Code = "unique_violation"
	CheckViolation        Code = "check_violation"
	ExclusionViolation    Code = "exclusion_violation"
	InvalidTextRep        Code = "invalid_text_representation"
	ConnectionException   Code = "connection_exception"
	InsufficientResources Code = "insufficient_resources"
	SerializationFailure  Code = "serialization_failure"
	DeadlockDetected      Code = "deadlock_detected"
	QueryCanceled         Code = "query_canceled"
	AdminShutdown         Code = "admin_shutdown"
	CannotConnectNow      Code = "cannot_connect_now"
	UndefinedTable        Code = "undefined_table"
)

var codes = map[string]Code{
	"23502": NotNullViolation,
	"23503": ForeignKeyViolation,
	"23505": UniqueViolation,
	"23514": CheckViolation,
	"23P01": ExclusionViolation,
	"22P02": InvalidTextRep,
	"40001": SerializationFailure,
	"40P01": DeadlockDetected,
	"57014": QueryCanceled,
	"57P01": AdminShutdown,
	"57P03": CannotConnectNow,
	"42P01": UndefinedTable,
}

// MapCode maps a SQLSTATE onto a Code. Whole classes are matched for
// connection (08) and resource (53) failures.
func MapCode(sqlstate string) Code {
	if c, ok := codes[sqlstate]; ok {
		return c
	}
	switch {
	case strings.HasPrefix(sqlstate, "08"):
		return ConnectionException
	case strings.HasPrefix(sqlstate, "53"):
		return InsufficientResources
	}
	return Other
}

// Transient reports whether the code describes a failure that may succeed on
// a later attempt.
func (c Code) Transient() bool {
	switch c {
	case ConnectionException, InsufficientResources, SerializationFailure,
		DeadlockDetected, AdminShutdown, CannotConnectNow:
		return true
	}
	return false
}

// Severity mirrors the Postgres message severity.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityFatal   Severity = "FATAL"
	SeverityPanic   Severity = "PANIC"
	SeverityWarning Severity = "WARNING"
	SeverityNotice  Severity = "NOTICE"
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityLog     Severity = "LOG"
)

// MapSeverity normalises a severity string; unknown values become ERROR.
func MapSeverity(s string) Severity {
	switch sev := Severity(strings.ToUpper(s)); sev {
	case SeverityError, SeverityFatal, SeverityPanic, SeverityWarning,
		SeverityNotice, SeverityDebug, SeverityInfo, SeverityLog:
		return sev
	}
	return SeverityError
}

// Error is a structured view of a *pgconn.PgError.
type Error struct {
	Code           Code
	Severity       Severity
	DatabaseCode   string
	Message        string
	SchemaName     string
	TableName      string
	ColumnName     string
	DataTypeName   string
	ConstraintName string
	driverErr      error
}

func (e *Error) Error() string {
	return e.DatabaseCode + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.driverErr
}

// ConvertPgError copies the fields of a Postgres error into an *Error.
func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		SchemaName:     src.SchemaName,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		DataTypeName:   src.DataTypeName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}
