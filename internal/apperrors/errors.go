// Package apperrors defines the coded error type shared by all layers.
// Handlers map codes to HTTP statuses; repositories and services attach
// codes at the point where the failure class is known.
package apperrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and logging.
type Code string

const (
	ErrCodeInternal     Code = "internal"
	ErrCodeNotFound     Code = "not_found"
	ErrCodeConflict     Code = "conflict"
	ErrCodeUnauthorized Code = "unauthorized"
	ErrCodeInvalidInput Code = "invalid_input"
)

// Error carries a code, a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound builds a not_found error for a resource/id pair.
func NotFound(resource, id string) error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// Unauthorized builds an unauthorized error.
func Unauthorized(message string) error {
	return &Error{Code: ErrCodeUnauthorized, Message: message}
}

// Conflict builds a conflict error.
func Conflict(message string) error {
	return &Error{Code: ErrCodeConflict, Message: message}
}

// InvalidInput builds an invalid_input error for a named field.
func InvalidInput(field, message string) error {
	return &Error{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("%s: %s", field, message)}
}

// CodeOf extracts the code from an error chain, defaulting to internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
