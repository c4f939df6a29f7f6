package users

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-labs/archon-authz/pkg/authz"
)

func now() time.Time {
	return time.Now().UTC()
}

func userRow(id, email, role string, active bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "email", "full_name", "avatar_url", "role", "is_active",
		"password_hash", "metadata", "created_at", "updated_at",
	}).AddRow(id, email, "", "", role, active, "hash", "{}", now, now)
}

func TestCreateRoleDecidedByDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	// First insert: the database reports the row was written as admin.
	// The insert runs in a transaction holding the registration lock.
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(int64(firstAdminLockKey)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO user_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
	mock.ExpectCommit()
	first := &User{Email: "first@example.com", PasswordHash: "h"}
	require.NoError(t, store.Create(context.Background(), first))
	assert.Equal(t, authz.RoleAdmin, first.Role)
	assert.True(t, first.Active)
	assert.NotEmpty(t, first.ID)

	// Second insert: regular user.
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(int64(firstAdminLockKey)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO user_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("user"))
	mock.ExpectCommit()
	second := &User{Email: "second@example.com", PasswordHash: "h"}
	require.NoError(t, store.Create(context.Background(), second))
	assert.Equal(t, authz.RoleUser, second.Role)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO user_profiles").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err = store.Create(context.Background(), &User{Email: "dup@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("SELECT (.+) FROM user_profiles WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestActiveAdminIDsLocksRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM user_profiles(.+)FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))
	mock.ExpectRollback()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	ids, err := store.ActiveAdminIDs(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestUpdateProfilePartialFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	name := "Alice Chen"
	mock.ExpectQuery("UPDATE user_profiles SET updated_at = \\$1, full_name = \\$2 WHERE id = \\$3").
		WithArgs(sqlmock.AnyArg(), name, "u1").
		WillReturnRows(userRow("u1", "alice@example.com", "user", true))

	got, err := store.UpdateProfile(context.Background(), "u1", ProfileUpdate{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
