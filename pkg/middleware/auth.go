package middleware

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/contextkeys"
	"github.com/platinummonkey/pastebin/pkg/httputil"
	"github.com/platinummonkey/pastebin/pkg/observability"
)

// AuthMiddleware resolves request credentials before handlers run
type AuthMiddleware struct {
	authenticator *auth.Authenticator
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Handler returns middleware that authenticates with opts. A resolved
// identity is put in the request context. Rejections answer 401 and
// store failures 500; neither reaches next. Absent callers pass through
// without an identity.
func (m *AuthMiddleware) Handler(opts auth.Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome, err := m.authenticator.Resolve(r.Context(), auth.RequestSource(r), opts)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Error("authentication backend failure")
				httputil.WriteInternalError(w)
				return
			}

			switch {
			case outcome.Resolved():
				ctx := contextkeys.WithIdentity(r.Context(), outcome.Identity)
				ctx = contextkeys.WithUserID(ctx, outcome.Identity.Owner().ID)
				next.ServeHTTP(w, r.WithContext(ctx))
			case outcome.Absent():
				next.ServeHTTP(w, r)
			default:
				httputil.WriteUnauthorized(w, rejectionMessage(outcome.Reason))
			}
		})
	}
}

// Optional accepts any valid credential or none
func (m *AuthMiddleware) Optional() func(http.Handler) http.Handler {
	return m.Handler(auth.Options{AllowAbsent: true})
}

// Required accepts any valid credential
func (m *AuthMiddleware) Required() func(http.Handler) http.Handler {
	return m.Handler(auth.Options{})
}

// Session accepts session tokens only
func (m *AuthMiddleware) Session() func(http.Handler) http.Handler {
	return m.Handler(auth.Options{RequireSessionToken: true})
}

// Secure accepts the secure session token only
func (m *AuthMiddleware) Secure() func(http.Handler) http.Handler {
	return m.Handler(auth.Options{RequireSecure: true})
}

func rejectionMessage(reason error) string {
	switch {
	case errors.Is(reason, auth.ErrInsufficientGate):
		return "this action needs a more privileged session"
	case errors.Is(reason, auth.ErrNoCredential):
		return "missing credentials"
	default:
		return "invalid token"
	}
}

// IdentityFromRequest returns the identity the auth middleware resolved,
// or nil for anonymous callers
func IdentityFromRequest(r *http.Request) *auth.Identity {
	id, _ := r.Context().Value(contextkeys.IdentityKey).(*auth.Identity)
	return id
}
