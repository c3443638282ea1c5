// Package auth provides authentication for the pastebin: password hashing,
// session and API token value types, the token store contract and the
// request Authenticator.
//
// # Credentials
//
// Two kinds of credential resolve to an Identity:
//
//	Session tokens  - the account owner acting as themselves, always FullAccess.
//	                  Insecure (long lived) or secure (short lived, required
//	                  for account and token management).
//	API tokens      - named, caller-issued, scoped by a 4-bit Mask:
//	                  create=1, edit=2, delete=4, view_private=8.
//
// Secrets are random base64url strings; stores keep only their SHA-256
// digest. An API token also has an ident, a non-secret handle used to edit
// or delete it. The ident is never accepted as a credential.
//
// # Resolving a request
//
//	authn := auth.NewAuthenticator(store, logger, metrics)
//	outcome, err := authn.Resolve(ctx, auth.RequestSource(r), auth.Options{RequireSecure: true})
//	if err != nil {
//		// store unavailable: 500
//	}
//	if !outcome.Resolved() {
//		// 401; outcome.Reason says why for logs only
//	}
//
// The Authorization header (optionally "Bearer "-prefixed) is the only
// credential considered when present. Otherwise the "token" cookie is tried
// before the "securetoken" cookie.
//
// # Passwords
//
//	hasher := auth.NewHasher(pool, iterations, metrics)
//	digest, err := hasher.Hash(ctx, password, username)
//
// The salt is derived from the username, so renames must re-hash.
package auth
