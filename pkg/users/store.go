package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/archon-labs/archon-authz/pkg/authz"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken is returned when a registration reuses an existing email.
var ErrEmailTaken = errors.New("email already registered")

const userColumns = "id, email, full_name, avatar_url, role, is_active, password_hash, metadata, created_at, updated_at"

// Store handles user_profiles persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a new user store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// firstAdminLockKey is the advisory lock serializing first-user
// promotion. Under read committed two racing registrations could both
// see an empty table and both insert role 'admin'; the lock makes one
// of them wait until the other's insert is committed and visible.
const firstAdminLockKey = 0x6172636e0001

// Create inserts a new user. The role is decided inside the insert
// statement under an advisory lock: the first row ever written becomes
// admin, every later row a regular user.
func (s *Store) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Metadata == nil {
		user.Metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(user.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin registration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(firstAdminLockKey)); err != nil {
		return fmt.Errorf("failed to take registration lock: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO user_profiles (id, email, full_name, avatar_url, role, is_active, password_hash, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4,
			CASE WHEN EXISTS (SELECT 1 FROM user_profiles) THEN 'user' ELSE 'admin' END,
			TRUE, $5, $6, $7, $8)
		RETURNING role
	`

	var role string
	err = tx.QueryRowContext(ctx, query,
		user.ID, user.Email, user.FullName, user.AvatarURL,
		user.PasswordHash, string(metadataJSON), now, now,
	).Scan(&role)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}

	user.Role = authz.Role(role)
	user.Active = true
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM user_profiles WHERE id = $1", userColumns)
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM user_profiles WHERE email = $1", userColumns)
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

// List returns all users, newest first.
func (s *Store) List(ctx context.Context) ([]*User, error) {
	query := fmt.Sprintf("SELECT %s FROM user_profiles ORDER BY created_at DESC", userColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// UpdateProfile applies the self-service fields.
func (s *Store) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error) {
	sets := "updated_at = $1"
	args := []interface{}{time.Now().UTC()}
	n := 2

	if update.FullName != nil {
		sets += fmt.Sprintf(", full_name = $%d", n)
		args = append(args, *update.FullName)
		n++
	}
	if update.AvatarURL != nil {
		sets += fmt.Sprintf(", avatar_url = $%d", n)
		args = append(args, *update.AvatarURL)
		n++
	}
	if update.Metadata != nil {
		metadataJSON, err := json.Marshal(update.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		sets += fmt.Sprintf(", metadata = $%d", n)
		args = append(args, string(metadataJSON))
		n++
	}

	query := fmt.Sprintf("UPDATE user_profiles SET %s WHERE id = $%d RETURNING %s", sets, n, userColumns)
	args = append(args, id)

	return s.scanOne(s.db.QueryRowContext(ctx, query, args...))
}

// ActiveAdminIDs returns the IDs of every active admin, locking their
// rows for the duration of the transaction. Callers checking the
// last-admin invariant must go through this inside the same transaction
// as the mutation they guard.
func (s *Store) ActiveAdminIDs(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM user_profiles
		WHERE role = 'admin' AND is_active = TRUE
		FOR UPDATE
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to lock active admins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetRole updates the role column inside a transaction.
func (s *Store) SetRole(ctx context.Context, tx *sql.Tx, id string, role authz.Role) error {
	result, err := tx.ExecContext(ctx,
		"UPDATE user_profiles SET role = $1, updated_at = $2 WHERE id = $3",
		string(role), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return expectOneRow(result)
}

// SetActive updates the active flag inside a transaction.
func (s *Store) SetActive(ctx context.Context, tx *sql.Tx, id string, active bool) error {
	result, err := tx.ExecContext(ctx,
		"UPDATE user_profiles SET is_active = $1, updated_at = $2 WHERE id = $3",
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update active flag: %w", err)
	}
	return expectOneRow(result)
}

// Delete hard-deletes a profile row. Only the explicit account-removal
// path uses this; deactivation is the normal terminal state.
func (s *Store) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := tx.ExecContext(ctx, "DELETE FROM user_profiles WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOneRow(result)
}

// Begin starts a transaction on the underlying pool.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) scanOne(row *sql.Row) (*User, error) {
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(scanner rowScanner) (*User, error) {
	var user User
	var fullName, avatarURL sql.NullString
	var metadataJSON string

	err := scanner.Scan(
		&user.ID,
		&user.Email,
		&fullName,
		&avatarURL,
		&user.Role,
		&user.Active,
		&user.PasswordHash,
		&metadataJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.FullName = fullName.String
	user.AvatarURL = avatarURL.String
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &user.Metadata); err != nil {
			user.Metadata = map[string]interface{}{}
		}
	} else {
		user.Metadata = map[string]interface{}{}
	}
	return &user, nil
}

func expectOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// isUniqueViolation matches the postgres unique_violation error code.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
