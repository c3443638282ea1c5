package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pastebin/pkg/accounts"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/httputil"
	"github.com/platinummonkey/pastebin/pkg/middleware"
	"github.com/platinummonkey/pastebin/pkg/observability"
	"github.com/platinummonkey/pastebin/pkg/pastes"
)

// DefaultMaxBodyBytes caps request bodies when Dependencies leaves it unset
const DefaultMaxBodyBytes = 2 << 20

// Dependencies wires the server. Limiter may be nil to disable rate limits.
type Dependencies struct {
	Accounts      *accounts.Service
	Pastes        *pastes.Service
	Authenticator *auth.Authenticator
	Limiter       middleware.Limiter
	Cookies       middleware.CookieConfig
	Audit         *auth.AuditLogger
	Logger        *observability.Logger
	Metrics       *observability.Metrics
	MaxBodyBytes  int64
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	authMW  *middleware.AuthMiddleware
	limits  *middleware.RateLimitMiddleware
	cookies middleware.CookieConfig
	audit   *auth.AuditLogger
	logger  *observability.Logger
}

// NewServer creates a new API server with every route registered
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}
	if deps.Audit == nil {
		deps.Audit = auth.NewAuditLogger(deps.Logger, nil)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		router:  mux.NewRouter(),
		authMW:  middleware.NewAuthMiddleware(deps.Authenticator),
		cookies: deps.Cookies,
		audit:   deps.Audit,
		logger:  deps.Logger,
	}
	if deps.Limiter != nil {
		s.limits = middleware.NewRateLimitMiddleware(deps.Limiter, deps.Metrics)
	}

	s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.RegisterRoutes(NewAccountHandlers(s, deps.Accounts))
	s.RegisterRoutes(NewTokenHandlers(s, deps.Accounts))
	s.RegisterRoutes(NewPasteHandlers(s, deps.Pastes))

	s.handler = httputil.Chain(
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware(deps.Logger),
		httputil.LoggingMiddleware,
		httputil.MaxBytesMiddleware(deps.MaxBodyBytes),
	)(s.router)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// limit returns the rate limit decorator for route, or a pass-through when
// rate limiting is off
func (s *Server) limit(route string) func(http.Handler) http.Handler {
	if s.limits == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.limits.Limit(route)
}

// guard wraps h with the given middleware, outermost first
func guard(h http.HandlerFunc, mws ...func(http.Handler) http.Handler) http.Handler {
	return httputil.Chain(mws...)(h)
}

// recordAudit writes an audit event for the outcome of a handler
func (s *Server) recordAudit(r *http.Request, action string, userID int64, err error) {
	status := auth.StatusSuccess
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrInsufficientGate):
		status = auth.StatusDenied
	default:
		status = auth.StatusFailure
	}
	if logErr := s.audit.LogFromRequest(r, action, status, userID, err); logErr != nil {
		observability.FromContext(r.Context()).WithError(logErr).Warn("audit event dropped")
	}
}

// identity returns the resolved caller. The zero Identity is invalid, so
// services reject it when no gate ran.
func identity(r *http.Request) auth.Identity {
	if id := middleware.IdentityFromRequest(r); id != nil {
		return *id
	}
	return auth.Identity{}
}
