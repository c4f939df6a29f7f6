package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/archon-labs/archon-authz/pkg/authz"
	"github.com/archon-labs/archon-authz/pkg/contextkeys"
	"github.com/archon-labs/archon-authz/pkg/httputil"
	"github.com/archon-labs/archon-authz/pkg/observability"
	"github.com/archon-labs/archon-authz/pkg/session"
	"github.com/archon-labs/archon-authz/pkg/users"
)

// CodeDeactivated is the machine-readable code clients use to distinguish
// "your account was deactivated, log out" from an ordinary expired token.
const CodeDeactivated = "account_deactivated"

const (
	profileCacheSize = 1024
	profileCacheTTL  = 30 * time.Second
)

type cachedProfile struct {
	user     *users.User
	cachedAt time.Time
}

// Auth resolves the Bearer token on each request to an authz.Subject and
// places it in the request context. The token alone is never trusted for
// role or active state: the profile is re-read (through a short-lived
// cache) so a role change or deactivation takes effect within the cache
// TTL even if session revocation lagged.
type Auth struct {
	tokens *session.Manager
	users  *users.Store
	cache  *lru.Cache[string, cachedProfile]
	logger *observability.Logger
}

// NewAuth creates the authentication middleware.
func NewAuth(tokens *session.Manager, userStore *users.Store, logger *observability.Logger) (*Auth, error) {
	cache, err := lru.New[string, cachedProfile](profileCacheSize)
	if err != nil {
		return nil, err
	}
	return &Auth{tokens: tokens, users: userStore, cache: cache, logger: logger}, nil
}

// Handler requires a valid session. Requests without one get 401.
func (m *Auth) Handler(next http.Handler) http.Handler {
	return m.handler(next, false)
}

// OptionalHandler resolves a subject when a token is present but lets
// anonymous requests through. Routes behind it must treat a missing
// subject as a guest-or-less caller, never as a default user.
func (m *Auth) OptionalHandler(next http.Handler) http.Handler {
	return m.handler(next, true)
}

func (m *Auth) handler(next http.Handler, optional bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			if optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		claims, err := m.tokens.Verify(r.Context(), token, session.UseAccess)
		if err != nil {
			m.rejectToken(w, err)
			return
		}

		user, err := m.lookupUser(r, claims.Subject)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				httputil.WriteUnauthorized(w, "unknown user")
				return
			}
			m.logger.WithError(err).Error("failed to load user for request")
			httputil.WriteInternalError(w, errors.New("internal server error"))
			return
		}

		if !user.Active {
			// Distinct from a bad token: the client should show the
			// deactivated state and force a logout.
			httputil.WriteErrorCode(w, http.StatusUnauthorized, CodeDeactivated, authz.ErrAccountDeactivated.Error())
			return
		}

		ctx := contextkeys.WithSubject(r.Context(), user.Subject())
		ctx = contextkeys.WithUser(ctx, user)
		ctx = contextkeys.WithSessionID(ctx, claims.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Auth) rejectToken(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrTokenExpired):
		httputil.WriteUnauthorized(w, "token expired")
	case errors.Is(err, session.ErrTokenRevoked):
		httputil.WriteUnauthorized(w, "session revoked")
	default:
		httputil.WriteUnauthorized(w, "invalid token")
	}
}

// lookupUser reads the profile through the cache. The cache is keyed by
// user ID and entries expire after profileCacheTTL, which bounds how
// stale a role or active flag can be.
func (m *Auth) lookupUser(r *http.Request, userID string) (*users.User, error) {
	if entry, ok := m.cache.Get(userID); ok {
		if time.Since(entry.cachedAt) < profileCacheTTL {
			return entry.user, nil
		}
		m.cache.Remove(userID)
	}

	user, err := m.users.GetByID(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	m.cache.Add(userID, cachedProfile{user: user, cachedAt: time.Now()})
	return user, nil
}

// Invalidate drops a user's cached profile. The API layer calls this
// after role changes and deactivations so they apply immediately on this
// instance instead of after the cache TTL.
func (m *Auth) Invalidate(userID string) {
	m.cache.Remove(userID)
}

// RequireAdmin gates a route on the admin role. It assumes Auth.Handler
// already ran; an absent subject is treated as unauthenticated.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := contextkeys.GetSubject(r.Context())
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !authz.IsAdmin(subject) {
			err := &authz.PermissionError{RequiredRole: authz.RoleAdmin, ActualRole: subject.Role}
			httputil.WriteDetailedError(w, http.StatusForbidden, err.Error(), map[string]string{
				"required_role": string(authz.RoleAdmin),
				"actual_role":   string(subject.Role),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
