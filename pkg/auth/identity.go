package auth

import "fmt"

// Kind discriminates the credential an Identity was resolved from
type Kind int

const (
	// KindInvalid is the zero value; no constructor produces it
	KindInvalid Kind = iota
	// KindSessionInsecure is the long-lived login session (cookie "token")
	KindSessionInsecure
	// KindSessionSecure is the short-lived session required for account
	// changes (cookie "securetoken")
	KindSessionSecure
	// KindAPIToken is a scoped token presented in the Authorization header
	KindAPIToken
)

func (k Kind) String() string {
	switch k {
	case KindSessionInsecure:
		return "session"
	case KindSessionSecure:
		return "secure_session"
	case KindAPIToken:
		return "api_token"
	default:
		return "invalid"
	}
}

// Identity is the result of authentication. Every authorization decision
// works on an Identity, never on the raw credential string.
type Identity struct {
	kind  Kind
	owner User
	mask  Mask
	id    string // digest of the credential, never the raw secret
	ident string
	name  string
}

// NewSessionIdentity builds an identity for a session token. Session
// tokens always carry FullAccess.
func NewSessionIdentity(owner User, secure bool, tokenDigest string) Identity {
	kind := KindSessionInsecure
	if secure {
		kind = KindSessionSecure
	}
	return Identity{
		kind:  kind,
		owner: owner,
		mask:  FullAccess,
		id:    tokenDigest,
		name:  kind.String(),
	}
}

// NewAPITokenIdentity builds an identity for an API token
func NewAPITokenIdentity(owner User, token APIToken, tokenDigest string) Identity {
	return Identity{
		kind:  KindAPIToken,
		owner: owner,
		mask:  token.Mask,
		id:    tokenDigest,
		ident: token.Ident,
		name:  token.Name,
	}
}

func (i Identity) Kind() Kind   { return i.kind }
func (i Identity) Owner() User  { return i.owner }
func (i Identity) Mask() Mask   { return i.mask }
func (i Identity) ID() string   { return i.id }
func (i Identity) Name() string { return i.name }

// Ident is the API token's public handle; empty for session tokens
func (i Identity) Ident() string { return i.ident }

// Permissions decodes the identity's mask
func (i Identity) Permissions() Permissions {
	return DecodePermissions(i.mask)
}

// IsSessionToken reports whether the identity came from either session variant
func (i Identity) IsSessionToken() bool {
	switch i.kind {
	case KindSessionInsecure, KindSessionSecure:
		return true
	case KindAPIToken, KindInvalid:
		return false
	default:
		return false
	}
}

// IsSecureSessionToken reports whether the identity came from the secure session slot
func (i Identity) IsSecureSessionToken() bool {
	switch i.kind {
	case KindSessionSecure:
		return true
	case KindSessionInsecure, KindAPIToken, KindInvalid:
		return false
	default:
		return false
	}
}

// Valid reports whether the identity was built by one of the constructors
func (i Identity) Valid() bool {
	return i.kind != KindInvalid
}

// WithOwner returns a copy bound to a freshly fetched owner
func (i Identity) WithOwner(owner User) Identity {
	i.owner = owner
	return i
}

func (i Identity) String() string {
	return fmt.Sprintf("%s(user=%d, perms=%s)", i.kind, i.owner.ID, i.Permissions())
}
