// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Overview
//
// This package resolves Bearer tokens to authorization subjects and
// protects the credential endpoints with rate limiting (in-memory and
// Redis-backed).
//
// # Middleware Components
//
// Auth: token authentication
//
//	auth, _ := middleware.NewAuth(tokenManager, userStore, logger)
//	protected.Use(auth.Handler)       // 401 without a valid session
//	public.Use(auth.OptionalHandler)  // subject when present, anonymous otherwise
//
// The middleware re-reads the user profile (through a short-lived LRU
// cache) on every request, so role changes and deactivations take effect
// without waiting for token expiry. A deactivated account gets a 401
// with code "account_deactivated" so clients can force logout.
//
// RequireAdmin: admin-only routes
//
//	adminRouter.Use(middleware.RequireAdmin)
//
// RateLimit / DistributedRateLimit: per-IP limits for login and register
//
//	limiter := middleware.NewRateLimiter(middleware.CredentialRateLimitConfig())
//	authRouter.Use(middleware.RateLimit(limiter))
//
// # Related Packages
//
//   - pkg/session: Token issuance and verification
//   - pkg/gate: Route-level authorization decisions
//   - pkg/authz: The predicate engine
package middleware
