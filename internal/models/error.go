package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication decision errors. ErrInvalidCredentials deliberately
	// covers both "no such user" and "wrong password" so callers cannot
	// enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMFAInvalid         = errors.New("invalid or expired verification code")
	ErrEmailNotVerified   = errors.New("email address not verified")

	// Session errors. Refresh fails closed: a missing user record
	// invalidates the session rather than preserving stale claims.
	ErrSessionExpired = errors.New("session expired")
	ErrSessionInvalid = errors.New("session invalid")

	// Infrastructure errors
	ErrStoreUnavailable    = errors.New("persistent store unavailable")
	ErrExternalLinkFailure = errors.New("external identity link failed")
)
