package goSession

import "errors"

var (
	// ErrTokenInvalid is returned for refresh or access credentials that fail
	// signature, issuer, audience, algorithm or claim checks.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for correctly signed credentials past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenReuse is returned when a refresh credential is presented after it
	// was rotated, revoked, forged, or lost a concurrent rotation. The subject's
	// whole lineage has been revoked by the time it is returned.
	ErrTokenReuse = errors.New("refresh token reuse detected")
	// ErrStoreUnavailable is returned when the session store cannot be reached
	// or returned a corrupt record. No credentials are returned alongside it.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrEngineNotReady is returned by methods whose collaborator was not
	// configured on the [Builder].
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidCredentials is returned by sign-in for an unknown email or a
	// wrong password. The two cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by sign-up when the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrPasswordPolicy is returned when a password violates the hasher's length bounds.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidInput is returned for empty identifiers.
	ErrInvalidInput = errors.New("invalid input")
)
