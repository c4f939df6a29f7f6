package authz

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra context.
var (
	// ErrUnauthenticated means no subject could be resolved for the
	// request. It is never silently downgraded to a guest subject.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrAccountDeactivated means the subject resolved but its account is
	// deactivated. The authentication boundary treats this as a distinct
	// denial so the UI can show an "account deactivated" state and force
	// logout instead of a generic 401.
	ErrAccountDeactivated = errors.New("account deactivated")
)

// InvalidRoleError reports an attempted role assignment outside the
// closed enumeration.
type InvalidRoleError struct {
	Value string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role %q: must be one of admin, user, viewer, guest", e.Value)
}

// PermissionError reports a denial for a subject that authenticated
// successfully but lacks the required role or permission. It carries both
// sides of the check so the failure can be self-diagnosed by the user
// rather than collapsing into a bare "access denied".
type PermissionError struct {
	// RequiredRole is set when a role-equality check failed.
	RequiredRole Role
	// Kind and Action are set when a resource permission check failed.
	Kind   ResourceKind
	Action Action
	// ActualRole is the role the subject actually holds.
	ActualRole Role
}

func (e *PermissionError) Error() string {
	if e.RequiredRole != "" {
		return fmt.Sprintf("insufficient role: %s required, have %s", e.RequiredRole, e.ActualRole)
	}
	return fmt.Sprintf("insufficient permission: %s required, have role %s",
		PermissionLabel(e.Kind, e.Action), e.ActualRole)
}

// LastAdminError reports a role change or deactivation that would leave
// the system with zero active admins. The mutation is rejected before any
// state changes.
type LastAdminError struct {
	UserID string
}

func (e *LastAdminError) Error() string {
	return fmt.Sprintf("cannot modify user %s: at least one active admin must remain", e.UserID)
}

// OwnershipTransferError reports a bulk ownership transfer attempted by a
// non-admin subject.
type OwnershipTransferError struct {
	SubjectID string
	Role      Role
}

func (e *OwnershipTransferError) Error() string {
	return fmt.Sprintf("ownership transfer denied for %s: admin role required, have %s", e.SubjectID, e.Role)
}

// IsPermissionDenied reports whether err is any of the typed authorization
// denials, as opposed to an infrastructure failure.
func IsPermissionDenied(err error) bool {
	var pe *PermissionError
	var oe *OwnershipTransferError
	return errors.As(err, &pe) || errors.As(err, &oe)
}
