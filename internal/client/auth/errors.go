package auth

import (
	"errors"
	"fmt"
)

var (
	ErrSessionExpired = errors.New("session expired, please log in again")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrClosed         = errors.New("auth manager closed")

	ErrEmailRequired    = errors.New("email is required")
	ErrInvalidEmail     = errors.New("email is not valid")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrNameRequired     = errors.New("name is required")
	ErrNameTooShort     = errors.New("name must be at least 3 characters")
)

// AuthError means the server (or the way to it) refused a login or a
// registration. Message is what the user should see.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError reports bad user input before anything is sent.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
