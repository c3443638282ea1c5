package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pastebin/pkg/access"
	"github.com/platinummonkey/pastebin/pkg/async"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/observability"
	"github.com/platinummonkey/pastebin/pkg/storage"
	"github.com/platinummonkey/pastebin/pkg/storage/memory"
)

type fixture struct {
	svc     *Service
	store   *memory.Store
	clock   *clockwork.FakeClock
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	store := memory.New(clock, storage.DefaultConfig())

	pool := async.NewWorkerPool(context.Background(), 2, "password hashing", 5*time.Second)
	t.Cleanup(func() { pool.Shutdown(time.Second) })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hasher := auth.NewHasher(pool, 10, metrics)

	return &fixture{
		svc:     NewService(store, hasher, DefaultConfig(), nil, metrics, clock),
		store:   store,
		clock:   clock,
		metrics: metrics,
	}
}

func (f *fixture) signup(t *testing.T, name, password string) auth.User {
	t.Helper()
	u, err := f.svc.Signup(context.Background(), SignupRequest{Name: name, Password: password})
	require.NoError(t, err)
	return u
}

// login returns the identity the issued token resolves to
func (f *fixture) login(t *testing.T, name, password string, secure bool) (auth.Identity, string) {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.Login(ctx, LoginRequest{Name: name, Password: password, Secure: secure})
	require.NoError(t, err)
	id, err := f.store.VerifyToken(ctx, res.Token)
	require.NoError(t, err)
	return id, res.Token
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.signup(t, "alice", "hunter2")
	assert.Equal(t, "alice", u.Name)
	assert.True(t, auth.IsHash(u.PasswordHash))
	assert.Equal(t, auth.HashPassword("hunter2", "alice", 10), u.PasswordHash)
	assert.Equal(t, auth.AvatarNone, u.Avatar.Kind)

	tests := []struct {
		name string
		req  SignupRequest
		want error
	}{
		{"duplicate ignoring case", SignupRequest{Name: "ALICE", Password: "x"}, auth.ErrConflict},
		{"too short", SignupRequest{Name: "ab", Password: "x"}, auth.ErrInvalidInput},
		{"too long", SignupRequest{Name: strings.Repeat("a", 33), Password: "x"}, auth.ErrInvalidInput},
		{"whitespace", SignupRequest{Name: "al ice", Password: "x"}, auth.ErrInvalidInput},
		{"no password", SignupRequest{Name: "carol"}, auth.ErrInvalidInput},
		{"bad email", SignupRequest{Name: "carol", Password: "x", Email: "not-an-email"}, auth.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// a pre-hashed password is stored as is
	pre := auth.HashPassword("pw", "dave", 10)
	dave, err := f.svc.Signup(ctx, SignupRequest{Name: "dave", Password: pre, Email: "dave@example.com"})
	require.NoError(t, err)
	assert.Equal(t, pre, dave.PasswordHash)
	assert.Equal(t, "dave@example.com", dave.Email)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "Alice", "hunter2")

	_, err := f.svc.Login(ctx, LoginRequest{Name: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginRequest{Name: "nobody", Password: "hunter2"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "unknown users look like bad passwords")

	_, err = f.svc.Login(ctx, LoginRequest{Name: "alice", Password: ""})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	id, first := f.login(t, "alice", "hunter2", false)
	assert.Equal(t, auth.KindSessionInsecure, id.Kind())
	assert.Equal(t, "Alice", id.Owner().Name)

	// the stored hash works as a password too
	res, err := f.svc.Login(ctx, LoginRequest{Name: "alice", Password: auth.HashPassword("hunter2", "Alice", 10)})
	require.NoError(t, err)
	_, err = f.store.VerifyToken(ctx, first)
	assert.ErrorIs(t, err, auth.ErrUnknownCredential, "login rotates the insecure slot")
	_, err = f.store.VerifyToken(ctx, res.Token)
	assert.NoError(t, err)

	secureID, _ := f.login(t, "alice", "hunter2", true)
	assert.True(t, secureID.IsSecureSessionToken())
	_, err = f.store.VerifyToken(ctx, res.Token)
	assert.NoError(t, err, "secure login leaves the insecure slot alone")

	res, err = f.svc.Login(ctx, LoginRequest{Name: "alice", Password: "hunter2", Remember: true})
	require.NoError(t, err)
	assert.True(t, res.User.RememberMe)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "pw")

	insecureID, insecure := f.login(t, "alice", "pw", false)
	_, secure := f.login(t, "alice", "pw", true)

	require.NoError(t, f.svc.Logout(ctx, insecureID))

	_, err := f.store.VerifyToken(ctx, insecure)
	assert.ErrorIs(t, err, auth.ErrUnknownCredential)
	_, err = f.store.VerifyToken(ctx, secure)
	assert.ErrorIs(t, err, auth.ErrUnknownCredential)

	tok := auth.NewAPITokenIdentity(insecureID.Owner(), auth.APIToken{Mask: auth.PermCreatePaste}, "d")
	assert.ErrorIs(t, f.svc.Logout(ctx, tok), auth.ErrInsufficientGate)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "pw")
	id, _ := f.login(t, "alice", "pw", false)

	u, err := f.svc.Me(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)

	tok := auth.NewAPITokenIdentity(u, auth.APIToken{Mask: auth.ValidMask}, "d")
	_, err = f.svc.Me(ctx, tok)
	assert.ErrorIs(t, err, auth.ErrInsufficientGate)
}

func TestChangeCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "old-pw")
	f.signup(t, "bob", "pw")

	insecureID, insecure := f.login(t, "alice", "old-pw", false)
	secureID, _ := f.login(t, "alice", "old-pw", true)

	newPW := "new-pw"
	_, err := f.svc.ChangeCredentials(ctx, insecureID, CredentialChange{CurrentPassword: "old-pw", NewPassword: &newPW})
	assert.ErrorIs(t, err, auth.ErrInsufficientGate, "insecure session cannot change the password")

	_, err = f.svc.ChangeCredentials(ctx, secureID, CredentialChange{CurrentPassword: "wrong", NewPassword: &newPW})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.svc.ChangeCredentials(ctx, secureID, CredentialChange{CurrentPassword: "old-pw"})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	taken := "BOB"
	_, err = f.svc.ChangeCredentials(ctx, secureID, CredentialChange{CurrentPassword: "old-pw", NewName: &taken})
	assert.ErrorIs(t, err, auth.ErrConflict)

	pair, err := f.svc.ChangeCredentials(ctx, secureID, CredentialChange{CurrentPassword: "old-pw", NewPassword: &newPW})
	require.NoError(t, err)

	_, err = f.store.VerifyToken(ctx, insecure)
	assert.ErrorIs(t, err, auth.ErrUnknownCredential, "old sessions are rotated out")

	id, err := f.store.VerifyToken(ctx, pair.Secure)
	require.NoError(t, err)
	assert.True(t, id.IsSecureSessionToken())

	_, err = f.svc.Login(ctx, LoginRequest{Name: "alice", Password: "old-pw"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	// rename rehashes with the new name as salt
	newName := "alicia"
	pair, err = f.svc.ChangeCredentials(ctx, id, CredentialChange{CurrentPassword: newPW, NewName: &newName})
	require.NoError(t, err)
	u, err := f.store.UserByName(ctx, "alicia")
	require.NoError(t, err)
	assert.Equal(t, auth.HashPassword(newPW, "alicia", 10), u.PasswordHash)

	id, err = f.store.VerifyToken(ctx, pair.Secure)
	require.NoError(t, err)

	// renaming with only the hash cannot re-salt
	again := "alicia2"
	_, err = f.svc.ChangeCredentials(ctx, id, CredentialChange{CurrentPassword: u.PasswordHash, NewName: &again})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "pw")
	insecureID, _ := f.login(t, "alice", "pw", false)
	secureID, _ := f.login(t, "alice", "pw", true)

	email := " alice@example.com "
	_, err := f.svc.UpdateProfile(ctx, insecureID, storage.ProfileUpdate{Email: &email})
	assert.ErrorIs(t, err, auth.ErrInsufficientGate)

	u, err := f.svc.UpdateProfile(ctx, secureID, storage.ProfileUpdate{
		Email:  &email,
		Avatar: &auth.Avatar{Kind: auth.AvatarGravatar},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, GravatarURL("alice@example.com"), AvatarURL(u))

	bad := []auth.Avatar{
		{Kind: "sprite"},
		{Kind: auth.AvatarCustom, URL: "ftp://example.com/a.png"},
		{Kind: auth.AvatarCustom, URL: ""},
	}
	for _, a := range bad {
		a := a
		_, err := f.svc.UpdateProfile(ctx, secureID, storage.ProfileUpdate{Avatar: &a})
		assert.ErrorIs(t, err, auth.ErrInvalidInput, "avatar %+v", a)
	}

	custom := auth.Avatar{Kind: auth.AvatarCustom, URL: "https://img.example.com/me.png"}
	u, err = f.svc.UpdateProfile(ctx, secureID, storage.ProfileUpdate{Avatar: &custom})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/me.png", AvatarURL(u))

	badEmail := "nope"
	_, err = f.svc.UpdateProfile(ctx, secureID, storage.ProfileUpdate{Email: &badEmail})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "pw")
	insecureID, _ := f.login(t, "alice", "pw", false)
	secureID, _ := f.login(t, "alice", "pw", true)

	email := "alice@example.com"
	_, err := f.svc.UpdateProfile(ctx, secureID, storage.ProfileUpdate{Email: &email})
	require.NoError(t, err)

	fresh, err := f.svc.Refresh(ctx, secureID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", fresh.Owner().Email)
	assert.Empty(t, secureID.Owner().Email, "the resolved identity is not mutated")
	assert.Equal(t, secureID.Kind(), fresh.Kind())
	assert.Equal(t, secureID.ID(), fresh.ID())

	apiID := auth.NewAPITokenIdentity(insecureID.Owner(), auth.APIToken{Ident: "x", Mask: auth.ValidMask}, "")
	_, err = f.svc.Refresh(ctx, apiID)
	assert.ErrorIs(t, err, auth.ErrInsufficientGate)
}

func TestValidateProfile(t *testing.T) {
	email := "  bob@example.com"
	update, err := ValidateProfile(storage.ProfileUpdate{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", *update.Email)
	assert.Equal(t, "  bob@example.com", email, "the caller's value is not touched")

	blank := "   "
	update, err = ValidateProfile(storage.ProfileUpdate{Email: &blank})
	require.NoError(t, err)
	assert.Equal(t, "", *update.Email)

	bad := "not an email"
	_, err = ValidateProfile(storage.ProfileUpdate{Email: &bad})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	_, err = ValidateProfile(storage.ProfileUpdate{Avatar: &auth.Avatar{Kind: "sprite"}})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
}

func TestGravatarURL(t *testing.T) {
	assert.Equal(t, GravatarURL("User@Example.com "), GravatarURL("user@example.com"))
	assert.True(t, strings.HasPrefix(GravatarURL("a@b.c"), "https://www.gravatar.com/avatar/"))
	assert.True(t, strings.HasSuffix(GravatarURL("a@b.c"), ".png?d=retro"))
	assert.Empty(t, AvatarURL(auth.User{Avatar: auth.Avatar{Kind: auth.AvatarNone}}))
}

func TestTokenManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "pw")
	f.signup(t, "bob", "pw")
	insecureID, _ := f.login(t, "alice", "pw", false)
	aliceID, _ := f.login(t, "alice", "pw", true)
	bobID, _ := f.login(t, "bob", "pw", true)

	_, err := f.svc.CreateToken(ctx, insecureID, "ci", auth.PermCreatePaste)
	assert.ErrorIs(t, err, auth.ErrInsufficientGate)

	_, err = f.svc.CreateToken(ctx, aliceID, "ci", auth.Mask(16))
	assert.ErrorIs(t, err, auth.ErrInvalidMask)

	_, err = f.svc.CreateToken(ctx, aliceID, "  ", auth.PermCreatePaste)
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	tok, err := f.svc.CreateToken(ctx, aliceID, "ci", auth.PermCreatePaste|auth.PermEditPaste)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Secret)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.TokenOperationsTotal.WithLabelValues("create")))

	// the API token itself cannot manage tokens
	apiID, err := f.store.VerifyToken(ctx, tok.Secret)
	require.NoError(t, err)
	_, err = f.svc.ListTokens(ctx, apiID)
	assert.ErrorIs(t, err, auth.ErrInsufficientGate)

	list, err := f.svc.ListTokens(ctx, aliceID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Secret)

	mask := auth.PermViewPrivate
	assert.ErrorIs(t, f.svc.EditToken(ctx, bobID, tok.Ident, nil, &mask), auth.ErrNotFound, "scoped to owner")
	assert.ErrorIs(t, f.svc.EditToken(ctx, aliceID, tok.Ident, nil, nil), auth.ErrInvalidInput)
	bad := auth.Mask(0x30)
	assert.ErrorIs(t, f.svc.EditToken(ctx, aliceID, tok.Ident, nil, &bad), auth.ErrInvalidMask)
	require.NoError(t, f.svc.EditToken(ctx, aliceID, tok.Ident, nil, &mask))

	apiID, err = f.store.VerifyToken(ctx, tok.Secret)
	require.NoError(t, err)
	assert.Equal(t, auth.PermViewPrivate, apiID.Mask())

	assert.ErrorIs(t, f.svc.DeleteToken(ctx, bobID, tok.Ident), auth.ErrNotFound)
	require.NoError(t, f.svc.DeleteToken(ctx, aliceID, tok.Ident))
	assert.ErrorIs(t, f.svc.DeleteToken(ctx, aliceID, tok.Ident), auth.ErrNotFound)

	_, err = f.store.VerifyToken(ctx, tok.Secret)
	assert.ErrorIs(t, err, auth.ErrUnknownCredential)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signup(t, "alice", "pw")
	insecureID, _ := f.login(t, "alice", "pw", false)
	secureID, _ := f.login(t, "alice", "pw", true)

	creator := u.ID
	require.NoError(t, f.store.CreatePaste(ctx, storage.Paste{ID: "p", Creator: &creator, Visibility: access.Public}))

	assert.ErrorIs(t, f.svc.DeleteAccount(ctx, insecureID, true), auth.ErrInsufficientGate)
	require.NoError(t, f.svc.DeleteAccount(ctx, secureID, true))

	p, err := f.store.GetPaste(ctx, "p")
	require.NoError(t, err)
	assert.Nil(t, p.Creator)

	_, err = f.svc.Login(ctx, LoginRequest{Name: "alice", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	// the name is free again
	f.signup(t, "alice", "pw")
}

func TestSweepExpiredSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "pw")
	f.login(t, "alice", "pw", true)

	n, err := f.svc.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(16 * time.Minute)
	n, err = f.svc.SweepExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SecureTokensSwept))
}

type failingStore struct {
	*memory.Store
}

var errDown = errors.New("db down")

func (failingStore) UserByName(context.Context, string) (auth.User, error) {
	return auth.User{}, errors.Join(auth.ErrStoreUnavailable, errDown)
}

func TestLoginStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	svc := NewService(failingStore{f.store}, f.svc.hasher, DefaultConfig(), nil, nil, f.clock)

	_, err := svc.Login(context.Background(), LoginRequest{Name: "alice", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
}
