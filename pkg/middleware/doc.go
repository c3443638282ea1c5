// Package middleware provides the HTTP decorators that sit in front of the
// paste and account handlers: credential resolution, session cookies and
// per-route rate limiting.
//
// # Authentication
//
// AuthMiddleware runs the authenticator with the gate a route needs and
// stores the resolved *auth.Identity in the request context:
//
//	authMW := middleware.NewAuthMiddleware(authenticator)
//	r.Handle("/api/paste/get/{id}", authMW.Optional()(getHandler))
//	r.Handle("/api/internal/token/create/", authMW.Secure()(createHandler))
//
// Rejected credentials answer 401. Token store failures answer 500 and are
// never treated as an anonymous caller.
//
// # Rate Limiting
//
// RateLimitMiddleware wraps a Limiter. RateLimiter is an in-process token
// bucket; DistributedRateLimiter shares a fixed window per key through
// Redis so that every instance enforces one allowance:
//
//	limits := middleware.NewRateLimitMiddleware(limiter, metrics)
//	r.Handle("/api/login/", limits.Limit("login")(loginHandler))
//
// Callers are keyed by the identity's owner when one was resolved, by
// client address otherwise.
package middleware
