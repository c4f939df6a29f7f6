package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/archon-labs/archon-authz/pkg/authz"
	"github.com/archon-labs/archon-authz/pkg/observability"
	"github.com/archon-labs/archon-authz/pkg/storage"
)

// ErrInvalidCredentials is returned when the email/password pair does not
// match. It deliberately does not distinguish an unknown email from a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidEmail is returned when a registration email fails validation.
var ErrInvalidEmail = errors.New("invalid email address")

// ErrWeakPassword is returned when a registration password is too short.
var ErrWeakPassword = errors.New("password must be at least 8 characters")

const minPasswordLength = 8

// SessionRevoker invalidates every live session of a user. Deactivation
// and removal call through it so a deactivated account cannot keep acting
// on a token issued while it was active.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) error
}

// Service implements the account lifecycle on top of the profile store.
// Every admin-gated mutation takes the acting subject explicitly and
// checks it here, before any SQL runs.
type Service struct {
	store    *Store
	admin    storage.AdminStore
	sessions SessionRevoker
	logger   *observability.Logger
}

// NewService creates the user service. sessions may be nil when no
// session layer is wired (tests, offline tools).
func NewService(store *Store, admin storage.AdminStore, sessions SessionRevoker, logger *observability.Logger) *Service {
	return &Service{store: store, admin: admin, sessions: sessions, logger: logger}
}

// Register creates a new account. The first account ever created becomes
// admin; every later one starts as a regular user.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hash),
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
	}).Info("user registered")
	return user, nil
}

// Authenticate checks credentials and returns the account. A deactivated
// account with correct credentials fails with ErrAccountDeactivated, not
// ErrInvalidCredentials, so the caller can surface the right state.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, authz.ErrAccountDeactivated
	}
	return user, nil
}

// Get returns one profile. Admins can fetch anyone; everyone else only
// themselves.
func (s *Service) Get(ctx context.Context, actor authz.Subject, targetID string) (*User, error) {
	if actor.ID != targetID {
		if err := requireAdmin(actor); err != nil {
			return nil, err
		}
	}
	return s.store.GetByID(ctx, targetID)
}

// List returns every profile. Admin only.
func (s *Service) List(ctx context.Context, actor authz.Subject) ([]*User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

// UpdateProfile applies self-service fields to the actor's own profile,
// or to any profile when the actor is an admin.
func (s *Service) UpdateProfile(ctx context.Context, actor authz.Subject, targetID string, update ProfileUpdate) (*User, error) {
	if actor.ID != targetID {
		if err := requireAdmin(actor); err != nil {
			return nil, err
		}
	}
	return s.store.UpdateProfile(ctx, targetID, update)
}

// UpdateRole changes a user's role. Admin only. Demoting the last active
// admin fails with LastAdminError; assigning the role the user already
// holds is a no-op. The active-admin rows are locked for the duration of
// the transaction so two concurrent demotions cannot both pass the count
// check.
func (s *Service) UpdateRole(ctx context.Context, actor authz.Subject, targetID string, newRole authz.Role) (*User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	adminIDs, err := s.store.ActiveAdminIDs(ctx, tx)
	if err != nil {
		return nil, err
	}

	target, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == newRole {
		return target, nil
	}

	if newRole != authz.RoleAdmin && isLastActiveAdmin(adminIDs, targetID) {
		return nil, &authz.LastAdminError{UserID: targetID}
	}

	if err := s.store.SetRole(ctx, tx, targetID, newRole); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit role change: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"actor_id": actor.ID,
		"user_id":  targetID,
		"old_role": string(target.Role),
		"new_role": string(newRole),
	}).Info("role changed")

	target.Role = newRole
	return target, nil
}

// Deactivate disables an account. Admin only, guarded by the last-admin
// invariant, and idempotent. Live sessions of the target are revoked so
// the deactivation takes effect before any token expires.
func (s *Service) Deactivate(ctx context.Context, actor authz.Subject, targetID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	adminIDs, err := s.store.ActiveAdminIDs(ctx, tx)
	if err != nil {
		return err
	}
	if isLastActiveAdmin(adminIDs, targetID) {
		return &authz.LastAdminError{UserID: targetID}
	}

	if err := s.store.SetActive(ctx, tx, targetID, false); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deactivation: %w", err)
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, targetID); err != nil {
			s.logger.WithError(err).WithField("user_id", targetID).Error("failed to revoke sessions after deactivation")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"actor_id": actor.ID,
		"user_id":  targetID,
	}).Info("user deactivated")
	return nil
}

// Reactivate re-enables an account. Admin only, idempotent.
func (s *Service) Reactivate(ctx context.Context, actor authz.Subject, targetID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.store.SetActive(ctx, tx, targetID, true); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reactivation: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"actor_id": actor.ID,
		"user_id":  targetID,
	}).Info("user reactivated")
	return nil
}

// Stats returns the per-kind data counts attributed to a user. A user may
// read their own stats; admins may read anyone's.
func (s *Service) Stats(ctx context.Context, actor authz.Subject, targetID string) (*Stats, error) {
	if actor.ID != targetID {
		if err := requireAdmin(actor); err != nil {
			return nil, err
		}
	}
	if _, err := s.store.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	counts, err := s.admin.CountByOwner(ctx, targetID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{UserID: targetID, Counts: counts}
	for kind, n := range counts {
		if kind != "task_assigned" {
			stats.TotalOwned += n
		}
	}
	return stats, nil
}

// TransferData moves every row owned by fromID to toID in one
// transaction. The admin check itself lives in the storage layer; both
// endpoints are verified to exist here first.
func (s *Service) TransferData(ctx context.Context, actor authz.Subject, fromID, toID string) (*storage.TransferStats, error) {
	if fromID == toID {
		return nil, errors.New("transfer source and destination are the same user")
	}
	if _, err := s.store.GetByID(ctx, fromID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetByID(ctx, toID); err != nil {
		return nil, err
	}

	stats, err := s.admin.TransferOwnership(ctx, actor, fromID, toID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"actor_id": actor.ID,
		"from":     fromID,
		"to":       toID,
		"rows":     stats.Total,
	}).Info("ownership transferred")
	return stats, nil
}

// Remove hard-deletes an account and cascades its owned data away. Admin
// only, guarded by the last-admin invariant. The profile delete commits
// first; the data cascade runs in its own transaction afterwards, so a
// cascade failure leaves orphaned rows rather than a half-deleted user.
func (s *Service) Remove(ctx context.Context, actor authz.Subject, targetID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	adminIDs, err := s.store.ActiveAdminIDs(ctx, tx)
	if err != nil {
		return err
	}
	if isLastActiveAdmin(adminIDs, targetID) {
		return &authz.LastAdminError{UserID: targetID}
	}

	if err := s.store.Delete(ctx, tx, targetID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user removal: %w", err)
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, targetID); err != nil {
			s.logger.WithError(err).WithField("user_id", targetID).Error("failed to revoke sessions after removal")
		}
	}

	if err := s.admin.CascadeRemoveOwner(ctx, targetID); err != nil {
		return fmt.Errorf("user removed but data cascade failed: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"actor_id": actor.ID,
		"user_id":  targetID,
	}).Info("user removed")
	return nil
}

func requireAdmin(actor authz.Subject) error {
	if !authz.IsAdmin(actor) {
		return &authz.PermissionError{RequiredRole: authz.RoleAdmin, ActualRole: actor.Role}
	}
	return nil
}

func isLastActiveAdmin(adminIDs []string, targetID string) bool {
	if len(adminIDs) != 1 {
		return false
	}
	return adminIDs[0] == targetID
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t")
}
