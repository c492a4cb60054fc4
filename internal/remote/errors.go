package remote

import (
	"errors"
	"fmt"
)

// Code is a machine-readable failure reason
type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeUnauthenticated Code = "unauthenticated"
	CodeInvalid         Code = "invalid"
	CodeConflict        Code = "conflict"
	CodeUnavailable     Code = "unavailable"
)

// Error is a failure reported by the backend
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted message
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the backend code carried by err, or "" if err is not
// (and does not wrap) an *Error.
func CodeOf(err error) Code {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Code
	}
	return ""
}

// IsNotFound reports whether err means the target row does not exist
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}
