// Package auth defines the identity provider contract used to start
// and end a dashboard session.
package auth

import (
	"context"
	"errors"
)

// Identity is an authenticated account. ID matches the account's
// profile row id.
type Identity struct {
	ID    string
	Email string
}

// Provider signs users in and out. Every failure carries a message
// that can be shown to the user as is.
type Provider interface {
	// CurrentIdentity returns the signed-in identity, or nil
	CurrentIdentity() *Identity

	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, email, password, name string) (*Identity, error)
	SignOut(ctx context.Context) error
}

// Error is a user-facing authentication failure
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrInvalidCredentials = &Error{Message: "Invalid email or password"}
	ErrEmailTaken         = &Error{Message: "An account with this email already exists"}
)

// Message returns the user-facing text for err
func Message(err error) string {
	if err == nil {
		return ""
	}
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return "An error occurred"
}
