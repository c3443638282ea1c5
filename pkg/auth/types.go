package auth

import "time"

// AvatarKind selects where a user's avatar comes from
type AvatarKind string

const (
	AvatarNone     AvatarKind = "none"
	AvatarGravatar AvatarKind = "gravatar"
	AvatarCustom   AvatarKind = "custom"
)

// Avatar is the avatar configuration stored with a user
type Avatar struct {
	Kind AvatarKind `json:"kind"`
	URL  string     `json:"url,omitempty"`
}

// User represents an account. Values are treated as immutable; edits go
// through the store and produce a new value.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // Never expose hash
	Avatar       Avatar    `json:"avatar"`
	JoinedAt     time.Time `json:"joined_at"`
	RememberMe   bool      `json:"remember_me"`
}

// WithEmail returns a copy of the user with a new email
func (u User) WithEmail(email string) User {
	u.Email = email
	return u
}

// WithAvatar returns a copy of the user with a new avatar configuration
func (u User) WithAvatar(avatar Avatar) User {
	u.Avatar = avatar
	return u
}

// APIToken represents a caller-issued credential scoped to one user
type APIToken struct {
	Ident     string    `json:"ident"`
	Secret    string    `json:"id,omitempty"` // Only set on the value returned by creation
	OwnerID   int64     `json:"owner_id"`
	Name      string    `json:"title"`
	Mask      Mask      `json:"permissions"`
	CreatedAt time.Time `json:"created_at"`
}

// Permissions decodes the token's mask
func (t APIToken) Permissions() Permissions {
	return DecodePermissions(t.Mask)
}

// SessionPair holds freshly rotated session tokens for both slots
type SessionPair struct {
	Insecure string
	Secure   string
}
