// Package apperr provides typed domain errors shared by all modules.
// Services return these errors and the HTTP layer maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes a domain error.
type Kind int

const (
	// KindUnknown is the default when no kind was specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a missing resource.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates a conflict with existing state, such as a
	// duplicate unique key or an illegal status transition.
	KindConflict
	// KindUnauthorized indicates missing or failed authentication.
	KindUnauthorized
	// KindForbidden indicates the caller may not perform the action.
	KindForbidden
	// KindBadRequest indicates a malformed request.
	KindBadRequest
	// KindInternal indicates an unexpected internal failure.
	KindInternal
)

// Error is a domain error with a Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // operation that failed (optional)
	Err     error       // underlying error (optional)
	Details interface{} // extra payload for the response (optional)
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap supports errors.Is/errors.As on the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a domain error wrapping an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation on the error and returns it.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails sets the details payload on the error and returns it.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// NotFound creates a not found error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Validation creates a validation error.
func Validation(message string) *Error { return New(KindValidation, message) }

// Conflict creates a conflict error.
func Conflict(message string) *Error { return New(KindConflict, message) }

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// BadRequest creates a bad request error.
func BadRequest(message string) *Error { return New(KindBadRequest, message) }

// Internal creates an internal error.
func Internal(message string) *Error { return New(KindInternal, message) }

// GetKind extracts the Kind from err, unwrapping as needed.
// Returns KindUnknown when err carries no *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
