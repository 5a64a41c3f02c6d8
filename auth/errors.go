package auth

import "errors"

// Sentinel errors for session handling.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrNoRefreshToken     = errors.New("auth: no refresh token")
)
