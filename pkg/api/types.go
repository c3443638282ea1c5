package api

import (
	"time"

	"github.com/platinummonkey/pastebin/pkg/accounts"
	"github.com/platinummonkey/pastebin/pkg/auth"
)

// UserResponse is the public shape of an account
type UserResponse struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email,omitempty"`
	Avatar     auth.Avatar `json:"avatar"`
	AvatarURL  string      `json:"avatar_url,omitempty"`
	JoinedAt   time.Time   `json:"joined_at"`
	RememberMe bool        `json:"remember_me"`
}

func newUserResponse(u auth.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Avatar:     u.Avatar,
		AvatarURL:  accounts.AvatarURL(u),
		JoinedAt:   u.JoinedAt,
		RememberMe: u.RememberMe,
	}
}

// LoginResponse is returned by a successful login. Token is also set as a
// cookie; header-based clients read it from here.
type LoginResponse struct {
	User   UserResponse `json:"user"`
	Token  string       `json:"token"`
	Secure bool         `json:"secure"`
}

// UserEditRequest changes the caller's account. Name and Password need
// CurrentPassword and rotate both sessions.
type UserEditRequest struct {
	CurrentPassword string       `json:"current_password"`
	Name            *string      `json:"name"`
	Password        *string      `json:"password"`
	Email           *string      `json:"email"`
	Avatar          *auth.Avatar `json:"avatar"`
	RememberMe      *bool        `json:"remember_me"`
}

func (r UserEditRequest) changesCredentials() bool {
	return r.Name != nil || r.Password != nil
}

func (r UserEditRequest) changesProfile() bool {
	return r.Email != nil || r.Avatar != nil || r.RememberMe != nil
}

// TokenResponse describes an API token. Secret is only present right
// after creation.
type TokenResponse struct {
	Ident        string            `json:"ident"`
	Secret       string            `json:"id,omitempty"`
	Name         string            `json:"title"`
	Permissions  auth.Mask         `json:"permissions"`
	Capabilities []auth.Capability `json:"capabilities"`
	CreatedAt    time.Time         `json:"created_at"`
}

func newTokenResponse(t auth.APIToken) TokenResponse {
	return TokenResponse{
		Ident:        t.Ident,
		Secret:       t.Secret,
		Name:         t.Name,
		Permissions:  t.Mask,
		Capabilities: t.Permissions().Render(),
		CreatedAt:    t.CreatedAt,
	}
}

// TokenCreateRequest issues a new API token
type TokenCreateRequest struct {
	Name  string    `json:"name"`
	Perms auth.Mask `json:"perms"`
}

// TokenEditRequest renames and/or re-scopes a token
type TokenEditRequest struct {
	Ident string     `json:"ident"`
	Name  *string    `json:"name"`
	Perms *auth.Mask `json:"perms"`
}

// TokenDeleteRequest revokes a token
type TokenDeleteRequest struct {
	Ident string `json:"ident"`
}

// PasteDeleteRequest removes a paste
type PasteDeleteRequest struct {
	ID string `json:"id"`
}
