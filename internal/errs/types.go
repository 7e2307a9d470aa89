package errs

import (
	"context"
	"errors"
	"maps"
	"strings"
)

// Kind names a class of failure. The string value is what clients see in the
// "kind" field of an error body.
type Kind string

const (
	// KindValidation means the client input did not satisfy its schema.
	KindValidation Kind = "ValidationError"

	// KindNotFound means the addressed entity or object does not exist.
	KindNotFound Kind = "NotFound"

	// KindConflict means a uniqueness constraint rejected a write.
	KindConflict Kind = "ConflictAlreadyExists"

	// KindUnavailable is a transient infrastructure failure. It is the only
	// kind eligible for automatic retry.
	KindUnavailable Kind = "BackendUnavailable"

	// KindService is a business-rule violation that a schema cannot express.
	KindService Kind = "ServiceError"

	// KindTimeout means the request deadline expired.
	KindTimeout Kind = "TimeoutError"

	// KindInternal is anything unexpected or unclassified.
	KindInternal Kind = "InternalError"
)

// Kinds lists every declared kind in a stable order.
var Kinds = []Kind{
	KindValidation,
	KindNotFound,
	KindConflict,
	KindUnavailable,
	KindService,
	KindTimeout,
	KindInternal,
}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Error is the typed error every layer returns.
//
// Message is client-facing (except for KindInternal, which is always reduced
// to an opaque message at the transport boundary). Op and Err are for logs.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Message is a human-readable summary safe to show to clients.
	Message string

	// Details holds per-field reasons, e.g. {"email": "must be a valid email address"}.
	Details map[string]string

	// Op names the operation that failed, e.g. "postgres.users.create".
	Op string

	// Err is the underlying cause, if any.
	Err error
}

// Error renders the full chain for logging.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind, so callers
// can write errors.Is(err, errs.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// WithDetail returns a copy of e with one more field detail.
func (e *Error) WithDetail(field, reason string) *Error {
	cp := *e
	cp.Details = maps.Clone(e.Details)
	if cp.Details == nil {
		cp.Details = make(map[string]string, 1)
	}
	cp.Details[field] = reason
	return &cp
}

// Sentinels for errors.Is checks.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrUnavailable = &Error{Kind: KindUnavailable}
	ErrService     = &Error{Kind: KindService}
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrInternal    = &Error{Kind: KindInternal}
)

// KindOf classifies any error. Context expiry counts as a timeout; anything
// that never passed through this package is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// Retryable reports whether err may be retried automatically. Callers must
// still only retry idempotent operations.
func Retryable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// Wrap annotates err with business context while preserving its kind and
// details. An empty message keeps the inner client message.
func Wrap(err error, op, message string) error {
	if err == nil {
		return nil
	}
	wrapped := &Error{
		Kind:    KindOf(err),
		Message: message,
		Op:      op,
		Err:     err,
	}
	var inner *Error
	if errors.As(err, &inner) {
		wrapped.Details = maps.Clone(inner.Details)
		if message == "" {
			wrapped.Message = inner.Message
		}
	}
	return wrapped
}

// Descriptor is the error body written to clients.
//
// Example:
//
//	{ "kind": "ValidationError", "message": "Validation failed", "details": { "name": "is required" } }
type Descriptor struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// internalMessage is the only text clients ever see for internal errors.
const internalMessage = "Internal Server Error"

// Describe converts err into its client-safe Descriptor. Internal errors lose
// every detail; other kinds keep their message and field details.
func Describe(err error) Descriptor {
	kind := KindOf(err)

	var e *Error
	if kind == KindInternal || !errors.As(err, &e) {
		switch kind {
		case KindInternal:
			return Descriptor{Kind: KindInternal, Message: internalMessage}
		case KindTimeout:
			return Descriptor{Kind: KindTimeout, Message: "Request timed out"}
		}
		return Descriptor{Kind: kind, Message: string(kind)}
	}

	msg := e.Message
	if msg == "" {
		msg = string(kind)
	}
	return Descriptor{
		Kind:    kind,
		Message: msg,
		Details: maps.Clone(e.Details),
	}
}
