package auth

import "context"

// Store persists users' session slots and API tokens. Implementations
// store only HashToken digests of secrets.
//
// Every method returns an error wrapping ErrStoreUnavailable when the
// backend cannot answer; that error says nothing about the credential.
type Store interface {
	// VerifyToken resolves a raw session token or API token secret.
	// Returns ErrUnknownCredential when nothing matches or a secure
	// session token has expired. Never matches an API token ident.
	VerifyToken(ctx context.Context, raw string) (Identity, error)

	// FindUserByCredential returns the owner of a session token in
	// either slot, ErrUnknownCredential otherwise
	FindUserByCredential(ctx context.Context, raw string) (User, error)

	// RotateSessionToken replaces one session slot and returns the new raw token.
	// The previous token in that slot stops verifying immediately.
	RotateSessionToken(ctx context.Context, userID int64, secure bool) (string, error)

	// CreateAPIToken issues a token. The returned value is the only one
	// that ever carries Secret.
	CreateAPIToken(ctx context.Context, ownerID int64, name string, mask Mask) (APIToken, error)

	// EditAPIToken updates the name and/or mask of a token owned by
	// ownerID. Reports false when no such token exists.
	EditAPIToken(ctx context.Context, ownerID int64, ident string, name *string, mask *Mask) (bool, error)

	// DeleteAPIToken removes a token owned by ownerID. Reports false when
	// no such token exists.
	DeleteAPIToken(ctx context.Context, ownerID int64, ident string) (bool, error)
}
