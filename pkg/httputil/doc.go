// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteSuccess(w, data)
//	httputil.WriteCreated(w, resource)
//
// Error responses:
//
//	httputil.WriteBadRequest(w, "invalid input")
//	httputil.WriteUnauthorized(w, "token expired")
//	httputil.WriteErrorCode(w, http.StatusUnauthorized, "account_deactivated", "account deactivated")
//
// # Request Parsing
//
//	var req loginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication middleware
//   - pkg/gate: Route-level authorization gate
package httputil
