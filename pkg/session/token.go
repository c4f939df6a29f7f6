package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/archon-labs/archon-authz/pkg/authz"
)

// Token uses. A refresh token can only be exchanged for a new pair; it
// never authenticates a request directly.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

var (
	// ErrTokenInvalid is returned for tokens that fail signature or claim
	// validation.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked is returned for valid tokens whose session no longer
	// exists (logout, deactivation, removal).
	ErrTokenRevoked = errors.New("session revoked")
)

// Claims is the JWT payload for both token uses.
type Claims struct {
	Role string `json:"role"`
	Use  string `json:"use"`
	jwt.RegisteredClaims
}

// AuthzSubject projects the claims onto the predicate engine's subject
// type. Active is true by construction: a deactivated user's sessions are
// revoked, so a token that passes revocation checks belongs to an active
// account at issue time. The authentication middleware still re-reads the
// profile for the authoritative flag.
func (c *Claims) AuthzSubject() authz.Subject {
	return authz.Subject{ID: c.Subject, Role: authz.Role(c.Role), Active: true}
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ManagerConfig configures token issuance.
type ManagerConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Manager issues and verifies token pairs against the session store.
type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      *Store
}

// NewManager creates a token manager. The secret is required; TTLs fall
// back to 15 minutes for access and 7 days for refresh tokens.
func NewManager(cfg ManagerConfig, store *Store) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session: signing secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		store:      store,
	}, nil
}

// Issue creates a new session for the user and signs an access/refresh
// pair bound to it. Both tokens share one session ID, so revoking the
// session kills both.
func (m *Manager) Issue(ctx context.Context, userID string, role authz.Role) (*TokenPair, error) {
	sessionID := uuid.NewString()

	access, err := m.sign(userID, role, UseAccess, sessionID, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(userID, role, UseRefresh, sessionID, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	// The session lives as long as the refresh token can still mint a new
	// access token.
	if err := m.store.Add(ctx, userID, sessionID, m.refreshTTL); err != nil {
		return nil, fmt.Errorf("failed to register session: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

// Verify parses and validates a token of the given use, then checks its
// session is still live.
func (m *Manager) Verify(ctx context.Context, tokenString, use string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Use != use {
		return nil, fmt.Errorf("%w: expected %s token", ErrTokenInvalid, use)
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, fmt.Errorf("%w: unknown issuer", ErrTokenInvalid)
	}

	live, err := m.store.Valid(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if !live {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the session:
// the old session is revoked so a stolen refresh token cannot be replayed
// after its legitimate use.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := m.Verify(ctx, refreshToken, UseRefresh)
	if err != nil {
		return nil, err
	}
	if err := m.store.Revoke(ctx, claims.ID); err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}
	return m.Issue(ctx, claims.Subject, authz.Role(claims.Role))
}

// Revoke ends the session carried by the token. Used by logout; tolerates
// already-expired tokens so logout never fails client-side cleanup.
func (m *Manager) Revoke(ctx context.Context, tokenString string) error {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ID == "" {
		return nil
	}
	return m.store.Revoke(ctx, claims.ID)
}

func (m *Manager) sign(userID string, role authz.Role, use, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		Use:  use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", use, err)
	}
	return signed, nil
}
