package authz

// IsAdmin reports whether the subject holds the admin role on an active
// account. A deactivated admin is not an admin: deactivation must strip
// privilege immediately even if the authentication boundary has not yet
// caught up with the stored flag.
func IsAdmin(s Subject) bool {
	return s.Role == RoleAdmin && s.Active
}

// HasRole reports whether the subject holds exactly the given role.
func HasRole(s Subject, role Role) bool {
	return s.Role == role
}

// CanView decides read visibility for one (subject, resource) pair.
//
// The subject sees the resource when any of the following holds:
//   - the subject owns it
//   - the subject is its assignee (task-like resources)
//   - the subject's role grants global read (admin, viewer)
//   - the resource is unowned (shared/public)
//
// Guests are additionally restricted to the kinds in GuestVisibleKinds;
// that restriction layers on top of the ownership rules rather than
// replacing them.
func CanView(s Subject, r Resource) bool {
	if s.Role == RoleGuest && !GuestVisibleKinds[r.Kind] {
		return false
	}
	if r.OwnerID != nil && *r.OwnerID == s.ID {
		return true
	}
	if r.AssigneeID != nil && *r.AssigneeID == s.ID {
		return true
	}
	if s.Role == RoleAdmin || s.Role == RoleViewer {
		return true
	}
	return r.OwnerID == nil
}

// CanEdit decides write access (create/update/delete uniformly) for one
// (subject, resource) pair: owner, assignee, or admin. Guests can never
// edit; viewers can never edit unless they own the row, which the viewer
// role does not preclude.
func CanEdit(s Subject, r Resource) bool {
	if s.Role == RoleGuest {
		return false
	}
	if r.OwnerID != nil && *r.OwnerID == s.ID {
		return true
	}
	if r.AssigneeID != nil && *r.AssigneeID == s.ID {
		return true
	}
	return IsAdmin(s)
}

// Can maps an action onto the view/edit predicates. Read goes through
// CanView; write and delete go through CanEdit.
func Can(s Subject, action Action, r Resource) bool {
	switch action {
	case ActionRead:
		return CanView(s, r)
	case ActionWrite, ActionDelete:
		return CanEdit(s, r)
	default:
		return false
	}
}
