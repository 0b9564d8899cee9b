// Package apperrors defines the error kinds surfaced by the HTTP API.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindProviderFailure Kind = "PROVIDER_FAILURE"
	KindStateConflict   Kind = "STATE_CONFLICT"
	KindInternal        Kind = "INTERNAL"
)

// Error carries a kind, the HTTP status it maps to and optional details
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details []interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails appends details rendered in the envelope's error list
func (e *Error) WithDetails(details ...interface{}) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// Validation returns a 400 error
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized returns a 401 error for bad credentials or tokens
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: message}
}

// NotFound returns a 404 error for the named resource
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: resource + " not found"}
}

// NotFoundf returns a 404 error with a formatted message
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a 409 error for a uniqueness violation
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Status: http.StatusConflict, Message: fmt.Sprintf(format, args...)}
}

// StateConflict returns a 409 error for a refused state transition
func StateConflict(reason string) *Error {
	return &Error{Kind: KindStateConflict, Status: http.StatusConflict, Message: reason}
}

// Provider wraps an upstream failure. status <= 0 becomes 502.
func Provider(status int, message string, payload interface{}) *Error {
	if status <= 0 {
		status = http.StatusBadGateway
	}
	e := &Error{Kind: KindProviderFailure, Status: status, Message: message}
	if payload != nil {
		e.Details = []interface{}{payload}
	}
	return e
}

// Internal wraps an unexpected failure
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// As extracts an *Error from the chain
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

func IsValidation(err error) bool      { return is(err, KindValidation) }
func IsUnauthorized(err error) bool    { return is(err, KindUnauthorized) }
func IsNotFound(err error) bool        { return is(err, KindNotFound) }
func IsConflict(err error) bool        { return is(err, KindConflict) }
func IsStateConflict(err error) bool   { return is(err, KindStateConflict) }
func IsProviderFailure(err error) bool { return is(err, KindProviderFailure) }

// StatusOf returns the HTTP status for err, 500 for anything unclassified
func StatusOf(err error) int {
	if e, ok := As(err); ok && e.Status > 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
