package access

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/observability"
)

func int64p(v int64) *int64 { return &v }

var (
	u1 = auth.User{ID: 1, Name: "u1"}
	u2 = auth.User{ID: 2, Name: "u2"}
)

func session(owner auth.User, secure bool) *auth.Identity {
	id := auth.NewSessionIdentity(owner, secure, "digest")
	return &id
}

func apiToken(owner auth.User, mask auth.Mask) *auth.Identity {
	id := auth.NewAPITokenIdentity(owner, auth.APIToken{Ident: "ident", OwnerID: owner.ID, Mask: mask}, "digest")
	return &id
}

func TestDecide_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		id     *auth.Identity
		res    Resource
		action Action
		want   Decision
	}{
		{
			name:   "A: anonymous reads public",
			res:    Resource{Creator: int64p(1), Visibility: Public},
			action: ActionRead,
			want:   Allow,
		},
		{
			name:   "B: edit-only api token cannot delete own paste",
			id:     apiToken(u1, auth.PermEditPaste),
			res:    Resource{Creator: int64p(1), Visibility: Public},
			action: ActionDelete,
			want:   Deny,
		},
		{
			name:   "C: session cannot read someone else's private paste",
			id:     session(u1, false),
			res:    Resource{Creator: int64p(2), Visibility: Private},
			action: ActionRead,
			want:   Deny,
		},
		{
			name:   "D: secure session reads own private paste",
			id:     session(u1, true),
			res:    Resource{Creator: int64p(1), Visibility: Private},
			action: ActionRead,
			want:   Allow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.id, tt.res, tt.action).Decision)
		})
	}
}

func TestDecide_Rules(t *testing.T) {
	own := int64p(1)
	other := int64p(2)

	tests := []struct {
		name       string
		id         *auth.Identity
		res        Resource
		action     Action
		want       Decision
		wantReason Reason
	}{
		{"anonymous reads unlisted", nil, Resource{Creator: other, Visibility: Unlisted}, ActionRead, Allow, ReasonUnlisted},
		{"anonymous reads private", nil, Resource{Creator: other, Visibility: Private}, ActionRead, Deny, ReasonAnonymous},
		{"owner token without view_private", apiToken(u1, auth.PermCreatePaste), Resource{Creator: own, Visibility: Private}, ActionRead, Deny, ReasonMissingPermission},
		{"owner token with view_private", apiToken(u1, auth.PermViewPrivate), Resource{Creator: own, Visibility: Private}, ActionRead, Allow, ReasonOwner},
		{"private listing for owner", session(u1, false), Resource{Creator: own, Visibility: Private}, ActionViewPrivateListing, Allow, ReasonOwner},
		{"private listing for other", session(u2, false), Resource{Creator: own, Visibility: Private}, ActionViewPrivateListing, Deny, ReasonNotOwner},
		{"private listing on public paste", session(u1, false), Resource{Creator: own, Visibility: Public}, ActionViewPrivateListing, Deny, ReasonNoRule},
		{"anonymous edit", nil, Resource{Creator: own, Visibility: Public}, ActionEdit, Deny, ReasonAnonymous},
		{"edit by non-owner session", session(u2, true), Resource{Creator: own, Visibility: Public}, ActionEdit, Deny, ReasonNotOwner},
		{"edit by owner session", session(u1, false), Resource{Creator: own, Visibility: Unlisted}, ActionEdit, Allow, ReasonOwner},
		{"edit by owner token without edit", apiToken(u1, auth.PermDeletePaste), Resource{Creator: own, Visibility: Public}, ActionEdit, Deny, ReasonMissingPermission},
		{"delete by owner token", apiToken(u1, auth.PermDeletePaste), Resource{Creator: own, Visibility: Private}, ActionDelete, Allow, ReasonOwner},
		{"delete anonymized paste", session(u1, false), Resource{Visibility: Public}, ActionDelete, Deny, ReasonNotOwner},
		{"unknown action", session(u1, false), Resource{Creator: own, Visibility: Public}, Action("share"), Deny, ReasonNoRule},
		{"read with invalid visibility", session(u1, false), Resource{Creator: own, Visibility: 9}, ActionRead, Deny, ReasonNoRule},
		{"zero identity is anonymous", &auth.Identity{}, Resource{Creator: own, Visibility: Public}, ActionEdit, Deny, ReasonAnonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.id, tt.res, tt.action)
			assert.Equal(t, tt.want, got.Decision)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.Equal(t, tt.want == Allow, Allowed(tt.id, tt.res, tt.action))
		})
	}
}

func TestIsOwner(t *testing.T) {
	// Anonymized paste never matches, even an owner with an unset id
	assert.False(t, IsOwner(session(auth.User{}, false), Resource{Creator: nil}))
	assert.False(t, IsOwner(session(auth.User{}, false), Resource{Creator: int64p(0)}))
	assert.False(t, IsOwner(nil, Resource{Creator: int64p(1)}))
	assert.True(t, IsOwner(session(u1, false), Resource{Creator: int64p(1)}))

	// Ownership is by id, not by name
	renamed := session(auth.User{ID: 1, Name: "renamed"}, false)
	assert.True(t, IsOwner(renamed, Resource{Creator: int64p(1)}))
}

func TestDecide_Total(t *testing.T) {
	ids := []*auth.Identity{nil, {}, session(u1, false), session(u1, true), apiToken(u1, 0), apiToken(u1, auth.ValidMask), apiToken(u2, 255)}
	creators := []*int64{nil, int64p(0), int64p(1), int64p(2)}
	visibilities := []Visibility{0, Public, Unlisted, Private, 4}
	actions := []Action{ActionRead, ActionEdit, ActionDelete, ActionViewPrivateListing, ""}

	for _, id := range ids {
		for _, c := range creators {
			for _, v := range visibilities {
				for _, a := range actions {
					r := Decide(id, Resource{Creator: c, Visibility: v}, a)
					if r.Decision != Allow && r.Decision != Deny {
						t.Fatalf("undefined decision %v", r.Decision)
					}
					if r.Reason == "" {
						t.Fatalf("decision without reason for %v %v %v", c, v, a)
					}
				}
			}
		}
	}
}

func TestChecker(t *testing.T) {
	var buf bytes.Buffer
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	checker := NewChecker(observability.NewLogger(observability.DebugLevel, &buf), metrics)

	res := Resource{Creator: int64p(1), Visibility: Private}
	assert.False(t, checker.Check(nil, res, ActionRead).Allowed())
	assert.True(t, checker.Check(session(u1, false), res, ActionRead).Allowed())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AccessDecisionsTotal.WithLabelValues("read", "deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AccessDecisionsTotal.WithLabelValues("read", "allow")))
	assert.Contains(t, buf.String(), "access denied")
}

func TestVisibility(t *testing.T) {
	assert.True(t, Public.Valid())
	assert.True(t, Private.Valid())
	assert.False(t, Visibility(0).Valid())
	assert.Equal(t, "unlisted", Unlisted.String())
	assert.Equal(t, "visibility(7)", Visibility(7).String())
}
