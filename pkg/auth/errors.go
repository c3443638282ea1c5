package auth

import "errors"

var (
	// ErrMalformedCredential means the input matches no known token shape
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrUnknownCredential means the credential is well formed but not in the store
	ErrUnknownCredential = errors.New("unknown credential")
	// ErrInsufficientGate means the identity resolved but failed a session or secure gate
	ErrInsufficientGate = errors.New("insufficient credential for this action")
	// ErrStoreUnavailable wraps persistence failures; it says nothing about the credential
	ErrStoreUnavailable = errors.New("token store unavailable")

	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrInvalidMask        = errors.New("invalid permission mask")
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
)
