package auth

import "errors"

var (
	// ErrDuplicateEmail is returned when registering an email that is
	// already taken, whether caught by the pre-check or by the storage
	// unique constraint.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases are never distinguished to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrAccountDisabled = errors.New("account disabled")
	ErrNotFound        = errors.New("not found")

	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
