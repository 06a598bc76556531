// Package errs defines the domain error taxonomy shared by the registry services.
//
// Services return *Error for business-rule failures. Anything else that escapes a
// service is treated as an internal failure by the transport layer.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error.
type Kind string

const (
	// KindNotFound indicates a referenced entity does not exist in the scope of the request.
	KindNotFound Kind = "NOT_FOUND"

	// KindConflict indicates a business-level uniqueness violation.
	KindConflict Kind = "CONFLICT"

	// KindForbidden indicates the actor does not own the object it tried to mutate.
	KindForbidden Kind = "FORBIDDEN"

	// KindUnprocessable indicates a validation failure, an illegal state
	// transition or a referential-integrity violation.
	KindUnprocessable Kind = "UNPROCESSABLE"

	// KindFatal indicates a configuration problem that the caller cannot fix.
	KindFatal Kind = "FATAL"

	// KindInternal is assigned to errors that carry no domain classification.
	KindInternal Kind = "INTERNAL"
)

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Message string
	// Detail carries a structured payload for the caller, e.g. a validity report.
	Detail any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail attaches a structured payload and returns the same error.
func (e *Error) WithDetail(detail any) *Error {
	e.Detail = detail
	return e
}

// New creates a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func Unprocessable(format string, args ...any) *Error {
	return New(KindUnprocessable, format, args...)
}

func Fatal(err error, format string, args ...any) *Error {
	return Wrap(KindFatal, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailOf returns the detail payload of the first *Error in err's chain.
func DetailOf(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return nil
}

// HTTPStatus maps a kind to the status code used by the HTTP adapter.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
