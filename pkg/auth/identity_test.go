package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pastebin/pkg/observability"
)

func TestIdentity_Predicates(t *testing.T) {
	owner := User{ID: 7, Name: "bob"}

	tests := []struct {
		name        string
		identity    Identity
		wantSession bool
		wantSecure  bool
		wantMask    Mask
	}{
		{"insecure session", NewSessionIdentity(owner, false, "d1"), true, false, FullAccess},
		{"secure session", NewSessionIdentity(owner, true, "d2"), true, true, FullAccess},
		{"api token", NewAPITokenIdentity(owner, APIToken{Ident: "i", Mask: PermEditPaste}, "d3"), false, false, PermEditPaste},
		{"zero value", Identity{}, false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSession, tt.identity.IsSessionToken())
			assert.Equal(t, tt.wantSecure, tt.identity.IsSecureSessionToken())
			assert.Equal(t, tt.wantMask, tt.identity.Mask())
		})
	}

	assert.False(t, Identity{}.Valid())
	assert.True(t, NewSessionIdentity(owner, false, "").Valid())
}

func TestIdentity_SessionAlwaysFullAccess(t *testing.T) {
	p := NewSessionIdentity(User{ID: 1}, false, "").Permissions()
	assert.Equal(t, Permissions{CreatePaste: true, EditPaste: true, DeletePaste: true, ViewPrivate: true}, p)
}

func TestIdentity_WithOwnerDoesNotMutate(t *testing.T) {
	original := NewAPITokenIdentity(User{ID: 1, Name: "old"}, APIToken{Ident: "x", Name: "ci"}, "")
	renamed := original.WithOwner(User{ID: 1, Name: "new"})

	assert.Equal(t, "old", original.Owner().Name)
	assert.Equal(t, "new", renamed.Owner().Name)
	assert.Equal(t, "x", renamed.Ident())
	assert.Equal(t, "ci", renamed.Name())
}

func TestUser_WithersReturnCopies(t *testing.T) {
	u := User{ID: 1, Email: "a@example.com"}
	v := u.WithEmail("b@example.com").WithAvatar(Avatar{Kind: AvatarGravatar})

	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, AvatarKind(""), u.Avatar.Kind)
	assert.Equal(t, "b@example.com", v.Email)
	assert.Equal(t, AvatarGravatar, v.Avatar.Kind)
}

func TestUser_JSONHidesHash(t *testing.T) {
	data, err := json.Marshal(User{ID: 1, Name: "alice", PasswordHash: "secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestAuditLogger(t *testing.T) {
	var buf bytes.Buffer
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	al := NewAuditLogger(observability.NewLogger(observability.InfoLevel, &buf), clock)

	r := httptest.NewRequest(http.MethodPost, "/api/internal/token/create/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("User-Agent", "curl/8")

	require.NoError(t, al.LogFromRequest(r, ActionTokenCreate, StatusSuccess, 42, nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ActionTokenCreate, entry["action"])
	assert.Equal(t, float64(42), entry["user_id"])
	assert.Equal(t, "10.0.0.1", entry["ip"])
	assert.Equal(t, "2024-01-02T03:04:05Z", entry["created_at"])

	assert.Error(t, al.Log(context.Background(), AuditEvent{Status: StatusSuccess}))
	assert.Error(t, al.Log(context.Background(), AuditEvent{Action: ActionLogin}))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "invalid", KindInvalid.String())
	assert.Equal(t, "session", KindSessionInsecure.String())
	assert.Equal(t, "secure_session", KindSessionSecure.String())
	assert.Equal(t, "api_token", KindAPIToken.String())
	assert.False(t, Identity{}.Valid())
}
