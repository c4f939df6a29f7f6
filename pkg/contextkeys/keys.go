// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/archon-labs/archon-authz/pkg/contextkeys"
//   ctx = contextkeys.WithSubject(ctx, subject)
//   subject, ok := contextkeys.GetSubject(ctx)
package contextkeys

import (
	"context"

	"github.com/archon-labs/archon-authz/pkg/authz"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SubjectKey contains the authenticated authz.Subject
	// Set by: middleware.Auth (pkg/middleware/auth.go)
	// Required by: All protected API endpoints, route gate
	// Type: authz.Subject
	SubjectKey Key = "authz_subject"

	// UserKey contains the full *users.User profile
	// Set by: middleware.Auth after the profile lookup
	// Used by: Profile endpoints that need more than the subject
	// Type: interface{} holding *users.User
	UserKey Key = "user_profile"

	// SessionIDKey contains the session ID string from the verified token
	// Set by: middleware.Auth
	// Used by: Logout, audit trail
	// Type: string
	SessionIDKey Key = "session_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// RequestStartTimeKey contains request start timestamp
	// Set by: audit middleware
	// Used by: Duration calculation for audit events
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// Helper functions for type-safe context operations

// WithSubject adds the authenticated subject to the context.
func WithSubject(ctx context.Context, subject authz.Subject) context.Context {
	return context.WithValue(ctx, SubjectKey, subject)
}

// GetSubject retrieves the authenticated subject from context. ok is
// false for unauthenticated requests.
func GetSubject(ctx context.Context) (authz.Subject, bool) {
	subject, ok := ctx.Value(SubjectKey).(authz.Subject)
	return subject, ok
}

// WithUser adds the full user profile to the context.
func WithUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser retrieves the full user profile from context.
func GetUser(ctx context.Context) interface{} {
	return ctx.Value(UserKey)
}

// WithSessionID adds the verified session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionID retrieves the session ID from context.
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// WithRequestID adds request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestStartTime adds request start time to the context.
func WithRequestStartTime(ctx context.Context, startTime interface{}) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}
