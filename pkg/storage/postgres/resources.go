package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/archon-labs/archon-authz/pkg/authz"
	"github.com/archon-labs/archon-authz/pkg/storage"
)

// Store is the predicate-enforcing postgres resource store. All reads and
// writes flow through the view/edit clauses in filter.go unless the store
// was obtained through Privileged.
type Store struct {
	db         *sql.DB
	privileged bool
}

// NewStore creates a resource store over an open connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Privileged returns a store that bypasses row filtering. For trusted
// backend-to-storage channels only; never hand this to a request path
// acting on behalf of an end user.
func (s *Store) Privileged() *Store {
	return &Store{db: s.db, privileged: true}
}

var _ storage.ResourceStore = (*Store)(nil)
var _ storage.AdminStore = (*Store)(nil)

// Create inserts a row after checking the ownership rule: the new row's
// owner is the acting subject or NULL, nothing else.
func (s *Store) Create(ctx context.Context, subject authz.Subject, res *storage.Resource) error {
	spec, err := specFor(res.Kind)
	if err != nil {
		return err
	}

	if !s.privileged {
		if subject.Role == authz.RoleGuest {
			return storage.ErrWriteDenied
		}
		if res.OwnerID != nil && *res.OwnerID != subject.ID {
			return storage.ErrOwnershipViolation
		}
	}

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.Payload == nil {
		res.Payload = json.RawMessage("{}")
	}
	now := time.Now().UTC()

	columns := "id, owner_id, payload, created_at, updated_at"
	placeholders := "$1, $2, $3, $4, $5"
	args := []interface{}{res.ID, res.OwnerID, string(res.Payload), now, now}

	if spec.hasProject {
		columns = "id, owner_id, project_id, payload, created_at, updated_at"
		placeholders = "$1, $2, $3, $4, $5, $6"
		args = []interface{}{res.ID, res.OwnerID, res.ProjectID, string(res.Payload), now, now}
	}
	if spec.hasAssignee {
		columns = "id, owner_id, assignee_id, project_id, payload, created_at, updated_at"
		placeholders = "$1, $2, $3, $4, $5, $6, $7"
		args = []interface{}{res.ID, res.OwnerID, res.AssigneeID, res.ProjectID, string(res.Payload), now, now}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", spec.table, columns, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create %s: %w", res.Kind, err)
	}

	res.CreatedAt = now
	res.UpdatedAt = now
	return nil
}

// Get returns one visible row. Hidden and missing rows are the same error.
func (s *Store) Get(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string) (*storage.Resource, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectColumns(spec), spec.table)
	args := []interface{}{id}

	if !s.privileged {
		clause, filterArgs := viewClause(subject, spec, kind, 2)
		query += " AND " + clause
		args = append(args, filterArgs...)
	}

	res, err := scanResource(s.db.QueryRowContext(ctx, query, args...), spec, kind)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return res, nil
}

// List returns every visible row of the kind, newest first.
func (s *Store) List(ctx context.Context, subject authz.Subject, kind authz.ResourceKind) ([]*storage.Resource, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", selectColumns(spec), spec.table)
	var args []interface{}

	if !s.privileged {
		clause, filterArgs := viewClause(subject, spec, kind, 1)
		query += " WHERE " + clause
		args = filterArgs
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []*storage.Resource
	for rows.Next() {
		res, err := scanResource(rows, spec, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", kind, err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Update rewrites a row's payload when the subject may edit it.
func (s *Store) Update(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string, payload json.RawMessage) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET payload = $1, updated_at = $2 WHERE id = $3", spec.table)
	args := []interface{}{string(payload), time.Now().UTC(), id}

	if !s.privileged {
		clause, filterArgs := editClause(subject, spec, 4)
		query += " AND " + clause
		args = append(args, filterArgs...)
	}

	return s.execExpectingRow(ctx, subject, spec, kind, authz.ActionWrite, id, query, args...)
}

// Delete removes a row when the subject may edit it.
func (s *Store) Delete(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", spec.table)
	args := []interface{}{id}

	if !s.privileged {
		clause, filterArgs := editClause(subject, spec, 2)
		query += " AND " + clause
		args = append(args, filterArgs...)
	}

	return s.execExpectingRow(ctx, subject, spec, kind, authz.ActionDelete, id, query, args...)
}

// SetAssignee changes the assignee reference of a task-like row.
func (s *Store) SetAssignee(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string, assigneeID *string) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}
	if !spec.hasAssignee {
		return fmt.Errorf("resource kind %q does not support assignment", kind)
	}

	query := fmt.Sprintf("UPDATE %s SET assignee_id = $1, updated_at = $2 WHERE id = $3", spec.table)
	args := []interface{}{assigneeID, time.Now().UTC(), id}

	if !s.privileged {
		clause, filterArgs := editClause(subject, spec, 4)
		query += " AND " + clause
		args = append(args, filterArgs...)
	}

	return s.execExpectingRow(ctx, subject, spec, kind, authz.ActionWrite, id, query, args...)
}

// execExpectingRow runs a mutation and sorts out why zero rows were
// touched. A row the subject cannot even view reads as missing, but a
// row they can view and just may not edit surfaces a permission error,
// so a viewer updating someone else's data gets a denial, not a 404.
func (s *Store) execExpectingRow(ctx context.Context, subject authz.Subject, spec kindSpec, kind authz.ResourceKind, action authz.Action, id, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mutate %s: %w", kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", kind, err)
	}
	if affected > 0 {
		return nil
	}
	if s.privileged {
		return storage.ErrNotFound
	}

	clause, filterArgs := viewClause(subject, spec, kind, 2)
	visible := fmt.Sprintf("SELECT 1 FROM %s WHERE id = $1 AND %s", spec.table, clause)
	visibleArgs := append([]interface{}{id}, filterArgs...)

	var one int
	switch err := s.db.QueryRowContext(ctx, visible, visibleArgs...).Scan(&one); err {
	case nil:
		return &authz.PermissionError{Kind: kind, Action: action, ActualRole: subject.Role}
	case sql.ErrNoRows:
		return storage.ErrNotFound
	default:
		return fmt.Errorf("failed to check %s visibility: %w", kind, err)
	}
}

func selectColumns(spec kindSpec) string {
	switch {
	case spec.hasAssignee:
		return "id, owner_id, assignee_id, project_id, payload, created_at, updated_at"
	case spec.hasProject:
		return "id, owner_id, project_id, payload, created_at, updated_at"
	default:
		return "id, owner_id, payload, created_at, updated_at"
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResource(scanner rowScanner, spec kindSpec, kind authz.ResourceKind) (*storage.Resource, error) {
	res := &storage.Resource{Kind: kind}
	var owner, assignee, project sql.NullString
	var payload string

	var err error
	switch {
	case spec.hasAssignee:
		err = scanner.Scan(&res.ID, &owner, &assignee, &project, &payload, &res.CreatedAt, &res.UpdatedAt)
	case spec.hasProject:
		err = scanner.Scan(&res.ID, &owner, &project, &payload, &res.CreatedAt, &res.UpdatedAt)
	default:
		err = scanner.Scan(&res.ID, &owner, &payload, &res.CreatedAt, &res.UpdatedAt)
	}
	if err != nil {
		return nil, err
	}

	if owner.Valid {
		v := owner.String
		res.OwnerID = &v
	}
	if assignee.Valid {
		v := assignee.String
		res.AssigneeID = &v
	}
	if project.Valid {
		v := project.String
		res.ProjectID = &v
	}
	res.Payload = json.RawMessage(payload)
	return res, nil
}
