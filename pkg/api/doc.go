// Package api provides the HTTP JSON API of the pastebin.
//
// # Overview
//
// The API is built on gorilla/mux and organized into handler groups that
// register their own routes:
//
//   - AccountHandlers: signup, login, logout and the caller's own account
//   - TokenHandlers: API token list, create, edit and delete
//   - PasteHandlers: paste reads, search, latest, writes and own listing
//
// Every route declares which credentials it accepts through the auth
// middleware gates in pkg/middleware:
//
//	Optional  anonymous callers allowed; unusable credentials are ignored
//	Required  any valid token, session or API
//	Session   session tokens only
//	Secure    the secure session token only
//
// Account-changing routes carry a per-route rate limit keyed by the
// caller's account, or by client IP when anonymous.
//
// # Usage
//
//	srv := api.NewServer(api.Dependencies{
//		Accounts:      accountsService,
//		Pastes:        pastesService,
//		Authenticator: auth.NewAuthenticator(store, logger, metrics),
//		Limiter:       middleware.NewRateLimiter(nil, nil),
//		Cookies:       middleware.DefaultCookieConfig(),
//		Logger:        logger,
//		Metrics:       metrics,
//	})
//	http.ListenAndServe(":8080", srv)
//
// # Errors
//
// Service errors are mapped to status codes by httputil.WriteServiceError.
// A paste the caller may not read answers 404 exactly like a missing one.
package api
