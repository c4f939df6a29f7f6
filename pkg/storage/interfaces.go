package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/archon-labs/archon-authz/pkg/authz"
)

// ErrNotFound is returned when a row does not exist or the acting subject
// is not permitted to view it. The two cases are deliberately
// indistinguishable to callers.
var ErrNotFound = errors.New("resource not found")

// ErrOwnershipViolation is returned when an insert names an owner other
// than the acting subject (and is not NULL/shared).
var ErrOwnershipViolation = errors.New("inserted row must be owned by the acting subject or unowned")

// ErrWriteDenied is returned when the acting subject's role cannot create
// rows at all (guests).
var ErrWriteDenied = errors.New("subject role may not create resources")

// Resource is one protected row. Payload carries the kind-specific
// document; the store only interprets the ownership columns.
type Resource struct {
	ID         string             `json:"id"`
	Kind       authz.ResourceKind `json:"kind"`
	OwnerID    *string            `json:"owner_id,omitempty"`
	AssigneeID *string            `json:"assignee_id,omitempty"`
	ProjectID  *string            `json:"project_id,omitempty"` // set for tasks and document versions
	Payload    json.RawMessage    `json:"payload,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// AuthzResource projects the row onto the predicate engine's view of it.
func (r *Resource) AuthzResource() authz.Resource {
	return authz.Resource{Kind: r.Kind, OwnerID: r.OwnerID, AssigneeID: r.AssigneeID}
}

// ResourceStore is the predicate-enforcing storage contract. Every method
// takes the acting subject explicitly; there is no ambient "current user"
// state anywhere in the store.
type ResourceStore interface {
	// Create inserts a row. The row's owner must equal subject.ID or be
	// nil; anything else fails with ErrOwnershipViolation before touching
	// the database.
	Create(ctx context.Context, subject authz.Subject, res *Resource) error

	// Get returns one row if the subject may view it, ErrNotFound
	// otherwise (including when the row exists but is hidden).
	Get(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string) (*Resource, error)

	// List returns every row of the kind the subject may view.
	List(ctx context.Context, subject authz.Subject, kind authz.ResourceKind) ([]*Resource, error)

	// Update rewrites the payload of a row the subject may edit.
	// ErrNotFound when the row is missing or not even visible; an
	// authz.PermissionError when the row is visible but not editable.
	Update(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string, payload json.RawMessage) error

	// Delete removes a row the subject may edit. Same error contract as
	// Update.
	Delete(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string) error

	// SetAssignee changes a task-like row's assignee. Owner, current
	// assignee, or admin only.
	SetAssignee(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string, assigneeID *string) error
}

// TransferStats summarizes one bulk ownership transfer.
type TransferStats struct {
	RowsByKind map[authz.ResourceKind]int64 `json:"rows_by_kind"`
	Total      int64                        `json:"total"`
}

// AdminStore holds the operations reserved for trusted callers: the
// privileged (unfiltered) view and the ownership lifecycle operations
// that back user removal and data transfer.
type AdminStore interface {
	// TransferOwnership reassigns every row owned by fromID to toID in a
	// single transaction, re-syncing denormalized owner copies (task rows
	// carry their project's owner). All-or-nothing.
	TransferOwnership(ctx context.Context, subject authz.Subject, fromID, toID string) (*TransferStats, error)

	// CascadeRemoveOwner applies the per-kind cascade rules for an owner
	// being removed: leaf content rows are deleted, assignment references
	// are cleared. One transaction.
	CascadeRemoveOwner(ctx context.Context, ownerID string) error

	// CountByOwner returns per-kind row counts attributed to a subject,
	// counting task assignment separately from task ownership.
	CountByOwner(ctx context.Context, userID string) (map[string]int64, error)
}

// Config holds storage backend configuration.
type Config struct {
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration
	MaxLifetime      time.Duration
	MaxIdleTime      time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		MaxLifetime:      time.Hour,
		MaxIdleTime:      10 * time.Minute,
	}
}
