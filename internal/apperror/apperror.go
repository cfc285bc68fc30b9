package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers on the other side of a boundary.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindTransport         Kind = "TRANSPORT"
	KindPersistence       Kind = "PERSISTENCE"
	KindInternal          Kind = "INTERNAL"
)

// Error is the error type surfaced by the order service.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind carrying err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return New(KindInvalidTransition, format, args...)
}

func Transport(err error, format string, args ...any) *Error {
	return Wrap(KindTransport, err, format, args...)
}

func Persistence(err error, format string, args ...any) *Error {
	return Wrap(KindPersistence, err, format, args...)
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

// HTTPStatus maps a kind to the HTTP status code used at the boundary.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition:
		return http.StatusConflict
	case KindTransport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message that is safe to expose to a remote caller.
// Persistence and internal failures never leak their underlying cause.
func Public(err error) (Kind, string) {
	var e *Error
	if !errors.As(err, &e) {
		return KindInternal, "internal error"
	}
	switch e.Kind {
	case KindPersistence:
		return e.Kind, "order storage unavailable"
	case KindInternal:
		return e.Kind, "internal error"
	}
	return e.Kind, e.Message
}
