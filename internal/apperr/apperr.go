// Package apperr defines the status-coded error returned by account operations.
//
// Services return *Error values to short-circuit an operation; the HTTP layer
// translates them into a {success:false, message} response using Status.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an Error
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindAuthentication
	KindForbidden
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind
func (k Kind) Status() int {
	switch k {
	case KindBadRequest, KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error with a kind and a client-facing message
type Error struct {
	Kind    Kind
	Message string
	// Err is the underlying cause, never shown to clients
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code of the error
func (e *Error) Status() int {
	return e.Kind.Status()
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// BadRequest reports missing or malformed input
func BadRequest(message string) *Error { return newError(KindBadRequest, message) }

// Authentication reports rejected credentials
func Authentication(message string) *Error { return newError(KindAuthentication, message) }

// Forbidden reports an authenticated caller without the required role
func Forbidden(message string) *Error { return newError(KindForbidden, message) }

// NotFound reports a missing resource or an invalid/expired token
func NotFound(message string) *Error { return newError(KindNotFound, message) }

// Validation reports input that violates a record invariant
func Validation(message string) *Error { return newError(KindValidation, message) }

// Internal reports a failed external dependency. The message is shown to clients.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// As returns the *Error in err's chain, if any
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err
func StatusOf(err error) int {
	return KindOf(err).Status()
}
