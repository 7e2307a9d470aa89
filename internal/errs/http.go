package errs

import (
	"fmt"
	"net/http"
)

// StatusMap maps error kinds onto HTTP status codes.
type StatusMap map[Kind]int

// DefaultStatuses is the kind -> status mapping used unless config overrides it.
func DefaultStatuses() StatusMap {
	return StatusMap{
		KindValidation:  http.StatusUnprocessableEntity,
		KindNotFound:    http.StatusNotFound,
		KindConflict:    http.StatusConflict,
		KindUnavailable: http.StatusServiceUnavailable,
		KindService:     http.StatusBadRequest,
		KindTimeout:     http.StatusGatewayTimeout,
		KindInternal:    http.StatusInternalServerError,
	}
}

// WithOverrides returns a copy of m with overrides applied. Keys are kind names
// ("NotFound"), values must be 4xx or 5xx codes.
func (m StatusMap) WithOverrides(overrides map[string]int) (StatusMap, error) {
	out := make(StatusMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	for name, status := range overrides {
		kind, ok := ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown error kind %q", name)
		}
		if status < 400 || status > 599 {
			return nil, fmt.Errorf("status for %s must be 4xx or 5xx, got %d", name, status)
		}
		out[kind] = status
	}
	return out, nil
}

// Status returns the status for kind, falling back to 500.
func (m StatusMap) Status(kind Kind) int {
	if s, ok := m[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// NewValidationError builds a ValidationError carrying one reason per field.
func NewValidationError(details map[string]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "Validation failed",
		Details: details,
	}
}

// NewNotFoundError creates a NotFound error with a client message.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewConflictError creates a ConflictAlreadyExists error. field may be empty
// when the violated key is unknown.
func NewConflictError(message, field string) *Error {
	e := &Error{Kind: KindConflict, Message: message}
	if field != "" {
		e.Details = map[string]string{field: "already exists"}
	}
	return e
}

// NewUnavailableError marks err as a transient backend failure.
func NewUnavailableError(op string, err error) *Error {
	return &Error{
		Kind:    KindUnavailable,
		Message: "Backend temporarily unavailable",
		Op:      op,
		Err:     err,
	}
}

// NewServiceError creates a business-rule violation.
func NewServiceError(message string) *Error {
	return &Error{Kind: KindService, Message: message}
}

// NewTimeoutError creates a TimeoutError.
func NewTimeoutError(op string, err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: "Request timed out",
		Op:      op,
		Err:     err,
	}
}

// NewInternalError wraps an unexpected failure. The message stays in logs.
func NewInternalError(op string, err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: internalMessage,
		Op:      op,
		Err:     err,
	}
}
