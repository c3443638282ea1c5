package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pastebin/pkg/access"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/httputil"
	"github.com/platinummonkey/pastebin/pkg/pastes"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// issueToken creates an API token for the secure session and returns its secret
func (ts *testServer) issueToken(t *testing.T, secure string, mask auth.Mask) string {
	t.Helper()
	w := ts.call(t, "POST", "/api/internal/token/create/", TokenCreateRequest{Name: "t", Perms: mask}, withCookie(auth.CookieSecureSession, secure))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tok TokenResponse
	decode(t, w, &tok)
	return tok.Secret
}

func (ts *testServer) createPaste(t *testing.T, opt func(*http.Request), title string, v access.Visibility) storage.Paste {
	t.Helper()
	w := ts.call(t, "POST", "/api/paste/create/", pastes.CreateRequest{
		Title:      title,
		Content:    "body of " + title,
		Visibility: v,
		Syntax:     "go",
	}, opt)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p storage.Paste
	decode(t, w, &p)
	ts.clock.Advance(time.Second)
	return p
}

func TestPasteReadVisibility(t *testing.T) {
	ts := newTestServer(t, nil)
	insecure, secure := ts.signupAndLogin(t, "alice")
	_, bobSecure := ts.signupAndLogin(t, "bob")
	asAlice := withCookie(auth.CookieSession, insecure)

	public := ts.createPaste(t, asAlice, "public", access.Public)
	unlisted := ts.createPaste(t, asAlice, "unlisted", access.Unlisted)
	private := ts.createPaste(t, asAlice, "private", access.Private)

	viewer := ts.issueToken(t, secure, auth.PermViewPrivate)
	blind := ts.issueToken(t, secure, auth.PermCreatePaste)
	bob := ts.issueToken(t, bobSecure, auth.ValidMask)

	tests := []struct {
		name  string
		paste storage.Paste
		opt   func(*http.Request)
		want  int
	}{
		{"anonymous public", public, func(*http.Request) {}, http.StatusOK},
		{"anonymous unlisted", unlisted, func(*http.Request) {}, http.StatusOK},
		{"anonymous private", private, func(*http.Request) {}, http.StatusNotFound},
		{"owner session private", private, asAlice, http.StatusOK},
		{"owner token with view private", private, withBearer(viewer), http.StatusOK},
		{"owner token without view private", private, withBearer(blind), http.StatusNotFound},
		{"other user private", private, withBearer(bob), http.StatusNotFound},
		{"garbage credential is anonymous", public, withBearer("garbage"), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.call(t, "GET", "/api/paste/get/"+tt.paste.ID, nil, tt.opt)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := ts.call(t, "GET", "/api/paste/get/"+private.ID, nil)
	var body httputil.ErrorResponse
	decode(t, w, &body)
	assert.Equal(t, "paste not found or private", body.Error)

	w = ts.call(t, "GET", "/api/paste/get/nothere1", nil)
	decode(t, w, &body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "paste not found or private", body.Error, "absent and private look the same")
}

func TestPasteGetAndRaw(t *testing.T) {
	ts := newTestServer(t, nil)
	insecure, _ := ts.signupAndLogin(t, "alice")
	p := ts.createPaste(t, withCookie(auth.CookieSession, insecure), "hello", access.Public)

	w := ts.call(t, "GET", "/api/paste/get/"+p.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view pastes.View
	decode(t, w, &view)
	assert.Equal(t, "alice", view.CreatorName)
	assert.Equal(t, "go", view.Syntax)

	w = ts.call(t, "GET", "/api/paste/raw/get/"+p.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body of hello", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestPasteCreateNeedsCredential(t *testing.T) {
	ts := newTestServer(t, nil)
	_, secure := ts.signupAndLogin(t, "alice")
	readOnly := ts.issueToken(t, secure, auth.PermViewPrivate)

	req := pastes.CreateRequest{Title: "t", Content: "c", Visibility: access.Public}

	w := ts.call(t, "POST", "/api/paste/create/", req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.call(t, "POST", "/api/paste/create/", req, withBearer(readOnly))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.call(t, "POST", "/api/paste/create/", pastes.CreateRequest{Title: "t", Content: "c", Visibility: 9}, withCookie(auth.CookieSecureSession, secure))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasteEditAndDelete(t *testing.T) {
	ts := newTestServer(t, nil)
	insecure, secure := ts.signupAndLogin(t, "alice")
	_, bobSecure := ts.signupAndLogin(t, "bob")
	asAlice := withCookie(auth.CookieSession, insecure)

	p := ts.createPaste(t, asAlice, "draft", access.Public)
	private := ts.createPaste(t, asAlice, "secret", access.Private)
	bob := ts.issueToken(t, bobSecure, auth.ValidMask)
	noEdit := ts.issueToken(t, secure, auth.PermCreatePaste)

	title := "final"
	w := ts.call(t, "POST", "/api/paste/edit/", pastes.EditRequest{ID: p.ID, Title: &title}, asAlice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var edited storage.Paste
	decode(t, w, &edited)
	assert.Equal(t, "final", edited.Title)

	w = ts.call(t, "POST", "/api/paste/edit/", pastes.EditRequest{ID: p.ID, Title: &title}, withBearer(noEdit))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.call(t, "POST", "/api/paste/edit/", pastes.EditRequest{ID: p.ID, Title: &title}, withBearer(bob))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.call(t, "POST", "/api/paste/delete/", PasteDeleteRequest{ID: private.ID}, withBearer(bob))
	assert.Equal(t, http.StatusNotFound, w.Code, "unreadable pastes are not revealed")

	deleteOnly := ts.issueToken(t, secure, auth.PermDeletePaste)
	w = ts.call(t, "POST", "/api/paste/delete/", PasteDeleteRequest{ID: private.ID}, withBearer(deleteOnly))
	assert.Equal(t, http.StatusNoContent, w.Code, "owner tokens delete private pastes without view_private")

	w = ts.call(t, "POST", "/api/paste/delete/", PasteDeleteRequest{ID: p.ID}, asAlice)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.call(t, "GET", "/api/paste/get/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPasteSearchAndLatest(t *testing.T) {
	ts := newTestServer(t, nil)
	insecure, secure := ts.signupAndLogin(t, "alice")
	asAlice := withCookie(auth.CookieSession, insecure)

	ts.createPaste(t, asAlice, "golang tips", access.Public)
	ts.createPaste(t, asAlice, "golang secrets", access.Private)
	ts.createPaste(t, asAlice, "rust notes", access.Public)

	w := ts.call(t, "GET", "/api/paste/search/?title=golang", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hits []pastes.Summary
	decode(t, w, &hits)
	require.Len(t, hits, 1)
	assert.Equal(t, "golang tips", hits[0].Title)

	viewer := ts.issueToken(t, secure, auth.PermViewPrivate)
	w = ts.call(t, "GET", "/api/paste/search/?title=golang", nil, withBearer(viewer))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &hits)
	assert.Len(t, hits, 2)

	w = ts.call(t, "GET", "/api/paste/search/?creator=nobody", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = ts.call(t, "GET", "/api/paste/search/?title=go&limit=lots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.call(t, "GET", "/api/paste/search/?title=(", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.call(t, "GET", "/api/paste/latest/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var latest []storage.Paste
	decode(t, w, &latest)
	require.Len(t, latest, 2)
	assert.Equal(t, "rust notes", latest[0].Title)
}

func TestListOwnPastes(t *testing.T) {
	ts := newTestServer(t, nil)
	insecure, secure := ts.signupAndLogin(t, "alice")
	asAlice := withCookie(auth.CookieSession, insecure)

	ts.createPaste(t, asAlice, "one", access.Public)
	ts.createPaste(t, asAlice, "two", access.Private)

	w := ts.call(t, "GET", "/api/internal/paste/list/", nil, asAlice)
	require.Equal(t, http.StatusOK, w.Code)
	var own []storage.Paste
	decode(t, w, &own)
	assert.Len(t, own, 2)

	token := ts.issueToken(t, secure, auth.ValidMask)
	w = ts.call(t, "GET", "/api/internal/paste/list/", nil, withBearer(token))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "api tokens cannot list")
}
