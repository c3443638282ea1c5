// Package httputil provides the JSON request and response helpers and the
// generic middleware shared by every HTTP handler.
//
// Service errors are mapped to statuses in one place:
//
//	if err != nil {
//		httputil.WriteServiceError(w, err)
//		return
//	}
//
// Middleware is composed with Chain:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//		httputil.MaxBytesMiddleware(2<<20),
//	)(router)
package httputil
