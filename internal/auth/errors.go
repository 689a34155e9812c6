package auth

import "errors"

var (
	// ErrEmailAlreadyExists indicates the email is already registered.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotVerified is returned on login before the email was confirmed.
	ErrAccountNotVerified = errors.New("account not verified")
	// ErrInvalidVerificationToken signals a verification link that does not match.
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthorized represents missing or invalid authentication tokens.
	ErrUnauthorized = errors.New("unauthorized")
)
