package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/archon-labs/archon-authz/pkg/authz"
	"github.com/archon-labs/archon-authz/pkg/storage"
)

// transferOrder fixes the table order for bulk transfer so that projects
// move before their tasks: the denormalized task owner copy is rewritten
// explicitly after the project rows change hands.
var transferOrder = []authz.ResourceKind{
	authz.KindSource,
	authz.KindPage,
	authz.KindCodeExample,
	authz.KindProject,
	authz.KindTask,
	authz.KindDocumentVersion,
	authz.KindPrompt,
}

// TransferOwnership reassigns every row owned by fromID to toID. Admin
// only, one transaction, all-or-nothing: a failure on any table rolls the
// whole transfer back.
func (s *Store) TransferOwnership(ctx context.Context, subject authz.Subject, fromID, toID string) (*storage.TransferStats, error) {
	if !s.privileged && !authz.IsAdmin(subject) {
		return nil, &authz.OwnershipTransferError{SubjectID: subject.ID, Role: subject.Role}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transfer transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	stats := &storage.TransferStats{RowsByKind: make(map[authz.ResourceKind]int64)}

	for _, kind := range transferOrder {
		spec, err := specFor(kind)
		if err != nil {
			return nil, err
		}

		query := fmt.Sprintf("UPDATE %s SET owner_id = $1, updated_at = $2 WHERE owner_id = $3", spec.table)
		result, err := tx.ExecContext(ctx, query, toID, now, fromID)
		if err != nil {
			return nil, fmt.Errorf("failed to transfer %s ownership: %w", kind, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to count transferred %s rows: %w", kind, err)
		}
		stats.RowsByKind[kind] = affected
		stats.Total += affected
	}

	// Task rows denormalize their project's owner; rows whose project just
	// moved but whose own owner differed (stale copies) are re-synced here
	// rather than trusting the trigger alone.
	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET owner_id = p.owner_id, updated_at = $1
		FROM projects p
		WHERE tasks.project_id = p.id AND tasks.owner_id IS DISTINCT FROM p.owner_id
	`, now); err != nil {
		return nil, fmt.Errorf("failed to re-sync task owners: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return stats, nil
}

// CascadeRemoveOwner applies the per-kind cascade rules when an owning
// subject is removed: leaf content is deleted, assignment references are
// cleared. Runs in one transaction. User removal deletes the profile row
// first and then calls this separately, so the cascade cannot lean on
// foreign keys and has to spell the rules out.
func (s *Store) CascadeRemoveOwner(ctx context.Context, ownerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cascade transaction: %w", err)
	}
	defer tx.Rollback()

	// Assignment references first: tasks assigned to the removed owner
	// survive under their project owner with the assignment cleared.
	if _, err := tx.ExecContext(ctx,
		"UPDATE tasks SET assignee_id = NULL, updated_at = $1 WHERE assignee_id = $2",
		time.Now().UTC(), ownerID,
	); err != nil {
		return fmt.Errorf("failed to clear task assignments: %w", err)
	}

	for _, kind := range transferOrder {
		spec, err := specFor(kind)
		if err != nil {
			return err
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE owner_id = $1", spec.table)
		if _, err := tx.ExecContext(ctx, query, ownerID); err != nil {
			return fmt.Errorf("failed to cascade-delete %s rows: %w", spec.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cascade: %w", err)
	}
	return nil
}

// CountByOwner returns per-kind row counts for one subject. Task
// assignment is counted separately from task ownership, matching the user
// stats surface.
func (s *Store) CountByOwner(ctx context.Context, userID string) (map[string]int64, error) {
	counts := make(map[string]int64, len(transferOrder)+1)

	for _, kind := range transferOrder {
		spec, err := specFor(kind)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE owner_id = $1", spec.table)
		var n int64
		if err := s.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s rows: %w", spec.table, err)
		}
		counts[string(kind)] = n
	}

	var assigned int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE assignee_id = $1", userID,
	).Scan(&assigned); err != nil {
		return nil, fmt.Errorf("failed to count assigned tasks: %w", err)
	}
	counts["task_assigned"] = assigned

	return counts, nil
}
