package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/archon-labs/archon-authz/pkg/authz"
)

func TestTransferOwnershipRequiresAdmin(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	for _, role := range []authz.Role{authz.RoleUser, authz.RoleViewer, authz.RoleGuest} {
		subject := authz.Subject{ID: "x", Role: role, Active: true}
		_, err := store.TransferOwnership(context.Background(), subject, "a", "b")

		var te *authz.OwnershipTransferError
		if !errors.As(err, &te) {
			t.Errorf("role %s: got %v, want OwnershipTransferError", role, err)
		}
	}

	// A deactivated admin is not an admin.
	inactive := authz.Subject{ID: "x", Role: authz.RoleAdmin, Active: false}
	if _, err := store.TransferOwnership(context.Background(), inactive, "a", "b"); err == nil {
		t.Error("deactivated admin should be denied")
	}
}

func TestTransferOwnershipMovesEveryKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	store := NewStore(db)
	admin := authz.Subject{ID: "root", Role: authz.RoleAdmin, Active: true}

	mock.ExpectBegin()
	for _, table := range []string{
		"sources", "crawled_pages", "code_examples",
		"projects", "tasks", "document_versions", "prompts",
	} {
		mock.ExpectExec("UPDATE " + table + " SET owner_id").
			WithArgs("bob", sqlmock.AnyArg(), "alice").
			WillReturnResult(sqlmock.NewResult(0, 2))
	}
	mock.ExpectExec("UPDATE tasks SET owner_id = p.owner_id").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	stats, err := store.TransferOwnership(context.Background(), admin, "alice", "bob")
	if err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}
	if stats.Total != 14 {
		t.Fatalf("got total %d, want 14", stats.Total)
	}
	if stats.RowsByKind[authz.KindTask] != 2 {
		t.Fatalf("got %d task rows, want 2", stats.RowsByKind[authz.KindTask])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransferOwnershipAllOrNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	store := NewStore(db)
	admin := authz.Subject{ID: "root", Role: authz.RoleAdmin, Active: true}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sources SET owner_id").
		WithArgs("bob", sqlmock.AnyArg(), "alice").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE crawled_pages SET owner_id").
		WithArgs("bob", sqlmock.AnyArg(), "alice").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := store.TransferOwnership(context.Background(), admin, "alice", "bob"); err == nil {
		t.Fatal("expected transfer to fail")
	}

	// The deferred rollback must fire: no partial transfer survives.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
