package authz

import (
	"fmt"
	"strings"
)

// Role represents a coarse-grained privilege tier. The set is closed:
// anything outside the four constants below is rejected at parse time.
type Role string

const (
	// RoleAdmin has full access to all resources and user management.
	RoleAdmin Role = "admin"
	// RoleUser has full access to resources it owns or is assigned to.
	RoleUser Role = "user"
	// RoleViewer has read-only access to all resources.
	RoleViewer Role = "viewer"
	// RoleGuest has read-only access to a restricted subset of resource kinds.
	RoleGuest Role = "guest"
)

// Roles returns the closed role set in privilege order, highest first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleUser, RoleViewer, RoleGuest}
}

// ParseRole validates a role string against the closed enumeration.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleUser, RoleViewer, RoleGuest:
		return r, nil
	default:
		return "", &InvalidRoleError{Value: s}
	}
}

// Valid reports whether the role is a member of the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleViewer, RoleGuest:
		return true
	}
	return false
}

// Action represents an operation on a protected resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// ResourceKind identifies a protected resource table.
type ResourceKind string

const (
	KindSource          ResourceKind = "source"
	KindPage            ResourceKind = "page"
	KindCodeExample     ResourceKind = "code_example"
	KindProject         ResourceKind = "project"
	KindTask            ResourceKind = "task"
	KindDocumentVersion ResourceKind = "document_version"
	KindPrompt          ResourceKind = "prompt"
)

// ResourceKinds returns every protected resource kind.
func ResourceKinds() []ResourceKind {
	return []ResourceKind{
		KindSource,
		KindPage,
		KindCodeExample,
		KindProject,
		KindTask,
		KindDocumentVersion,
		KindPrompt,
	}
}

// ParseResourceKind validates a kind string against the closed set of
// protected tables.
func ParseResourceKind(s string) (ResourceKind, error) {
	k := ResourceKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ResourceKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// SupportsAssignment reports whether the kind carries an assignee
// reference in addition to its owner reference. Only task-like resources
// do.
func (k ResourceKind) SupportsAssignment() bool {
	return k == KindTask
}

// GuestVisibleKinds is the authoritative allow-list of resource kinds a
// guest may view. Both the storage filter and the gating mirror read this
// list; it must not be duplicated elsewhere.
var GuestVisibleKinds = map[ResourceKind]bool{
	KindSource:  true,
	KindProject: true,
}

// Subject is the resolved identity an authorization decision is made for.
// It is constructed at the request boundary from the user store and passed
// explicitly to every predicate and storage call.
type Subject struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`
}

// Resource carries the ownership attributes of one protected resource
// instance. A nil OwnerID marks the resource as shared/public. AssigneeID
// is only meaningful for kinds that support assignment.
type Resource struct {
	Kind       ResourceKind `json:"kind"`
	OwnerID    *string      `json:"owner_id,omitempty"`
	AssigneeID *string      `json:"assignee_id,omitempty"`
}

// Owned is a convenience constructor for a resource owned by a subject.
func Owned(kind ResourceKind, ownerID string) Resource {
	return Resource{Kind: kind, OwnerID: &ownerID}
}

// Shared is a convenience constructor for an unowned/public resource.
func Shared(kind ResourceKind) Resource {
	return Resource{Kind: kind}
}

// Assigned is a convenience constructor for a task-like resource with
// both an owner and an assignee.
func Assigned(kind ResourceKind, ownerID, assigneeID string) Resource {
	return Resource{Kind: kind, OwnerID: &ownerID, AssigneeID: &assigneeID}
}

// PermissionLabel returns "kind:action" for log and metric labels.
func PermissionLabel(kind ResourceKind, action Action) string {
	return fmt.Sprintf("%s:%s", kind, action)
}
