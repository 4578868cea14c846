// Package apperr defines the error kinds that cross the Tiered Store / HTTP
// boundary (spec §7) and their HTTP status mapping, in the style of the
// teacher's pkg/errors: a single tagged error type plus constructor
// functions per kind, so handlers can return a plain error and let one
// responder decide how to render it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the error classes a request can fail with.
type Kind string

const (
	Unauthorized         Kind = "UNAUTHORIZED"
	Forbidden            Kind = "FORBIDDEN"
	NotFound             Kind = "NOT_FOUND"
	Conflict             Kind = "CONFLICT"
	BadRequest           Kind = "BAD_REQUEST"
	BackingStoreFailure  Kind = "BACKING_STORE_FAILURE"
	SerializationFailure Kind = "SERIALIZATION_FAILURE"
	ConfigFailure        Kind = "CONFIG_FAILURE"
)

var statusByKind = map[Kind]int{
	Unauthorized:         http.StatusUnauthorized,
	Forbidden:            http.StatusForbidden,
	NotFound:             http.StatusNotFound,
	Conflict:             http.StatusConflict,
	BadRequest:           http.StatusBadRequest,
	BackingStoreFailure:  http.StatusInternalServerError,
	SerializationFailure: http.StatusInternalServerError,
	ConfigFailure:        http.StatusInternalServerError,
}

// Error is the error type returned across the Tiered Store and
// request-handling boundary. It is never retried locally (spec §7).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status code this error kind maps to.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts an *Error from the chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err's Kind (if it is an *Error) equals kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// Status returns the HTTP status for any error: the mapped status if it
// is an *Error, otherwise 500.
func Status(err error) int {
	if e, ok := As(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}

func EmptyKey() *Error {
	return New(BadRequest, "key must not be empty")
}

func Poisoned() *Error {
	return New(BackingStoreFailure, "cache lock poisoned")
}
