package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/pastebin/pkg/access"
	"github.com/platinummonkey/pastebin/pkg/auth"
)

// Paste is a stored paste. Creator is nil once the owning account was
// deleted with its pastes kept.
type Paste struct {
	ID         string            `json:"id"`
	Creator    *int64            `json:"creator"`
	Visibility access.Visibility `json:"visibility"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Syntax     string            `json:"syntax"`
	Tags       string            `json:"tags"`
	Folder     string            `json:"folder"`
	CreatedAt  time.Time         `json:"created"`
	ModifiedAt time.Time         `json:"modified"`
}

// Resource projects the paste onto what the access policy looks at
func (p Paste) Resource() access.Resource {
	return access.Resource{Creator: p.Creator, Visibility: p.Visibility}
}

// PasteQuery selects pastes, newest first. A paste matches when it passes
// CreatorID (if set) and either has one of Visibilities or is owned by
// OrOwnedBy (if set). Limit <= 0 means no limit.
type PasteQuery struct {
	CreatorID    *int64
	Visibilities []access.Visibility
	OrOwnedBy    *int64
	Limit        int
	Offset       int
}

// Matches applies the query's filters to p. Backends that cannot express
// the filter natively use it after loading.
func (q PasteQuery) Matches(p Paste) bool {
	if q.CreatorID != nil && (p.Creator == nil || *p.Creator != *q.CreatorID) {
		return false
	}
	for _, v := range q.Visibilities {
		if p.Visibility == v {
			return true
		}
	}
	return q.OrOwnedBy != nil && p.Creator != nil && *p.Creator == *q.OrOwnedBy
}

// ProfileUpdate carries optional profile changes; nil fields are left alone
type ProfileUpdate struct {
	Email      *string
	Avatar     *auth.Avatar
	RememberMe *bool
}

// UserReader looks users up
type UserReader interface {
	// UserByName matches case-insensitively. Returns auth.ErrNotFound.
	UserByName(ctx context.Context, name string) (auth.User, error)
	// UserByID returns auth.ErrNotFound for unknown ids
	UserByID(ctx context.Context, id int64) (auth.User, error)
}

// UserWriter mutates users. Every call is atomic in the backend.
type UserWriter interface {
	// CreateUser inserts u and returns it with ID and JoinedAt set.
	// Returns auth.ErrConflict when the name is taken in any letter case.
	CreateUser(ctx context.Context, u auth.User) (auth.User, error)

	// UpdateCredentials sets name and password hash and rotates both
	// session slots in the same transaction
	UpdateCredentials(ctx context.Context, userID int64, name, passwordHash string) (auth.SessionPair, error)

	UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (auth.User, error)

	// DeleteUser removes the user and their API tokens. Their pastes are
	// anonymized when keepPastes is set, deleted otherwise.
	DeleteUser(ctx context.Context, userID int64, keepPastes bool) error
}

// TokenLister lists a user's API tokens without their secrets
type TokenLister interface {
	ListAPITokens(ctx context.Context, ownerID int64) ([]auth.APIToken, error)
}

// SessionSweeper clears secure session slots that expired before now
type SessionSweeper interface {
	SweepExpiredSecureTokens(ctx context.Context, now time.Time) (int64, error)
}

// AccountStore is everything account management needs
type AccountStore interface {
	auth.Store
	UserReader
	UserWriter
	TokenLister
	SessionSweeper
}

// PasteReader reads pastes
type PasteReader interface {
	// GetPaste returns auth.ErrNotFound for unknown ids
	GetPaste(ctx context.Context, id string) (Paste, error)
	ListPastes(ctx context.Context, q PasteQuery) ([]Paste, error)
}

// PasteWriter writes pastes
type PasteWriter interface {
	// CreatePaste returns auth.ErrConflict when the id is taken
	CreatePaste(ctx context.Context, p Paste) error
	// UpdatePaste replaces the mutable fields; auth.ErrNotFound if gone
	UpdatePaste(ctx context.Context, p Paste) error
	DeletePaste(ctx context.Context, id string) (bool, error)
}

// PasteStore is everything the paste service needs
type PasteStore interface {
	PasteReader
	PasteWriter
}

// HealthChecker reports backend health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Storage is the full backend contract
type Storage interface {
	AccountStore
	PasteStore
	HealthChecker
	Close() error
}
