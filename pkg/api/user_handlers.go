package api

import (
	"net/http"

	"github.com/archon-labs/archon-authz/pkg/audit"
	"github.com/archon-labs/archon-authz/pkg/authz"
	"github.com/archon-labs/archon-authz/pkg/contextkeys"
	"github.com/archon-labs/archon-authz/pkg/httputil"
	"github.com/archon-labs/archon-authz/pkg/users"
)

// subject pulls the acting subject the auth middleware resolved. The
// routes below all sit behind that middleware, so a miss is a wiring
// bug, not a user error.
func subject(w http.ResponseWriter, r *http.Request) (authz.Subject, bool) {
	s, ok := contextkeys.GetSubject(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
	}
	return s, ok
}

// listUsers handles GET /api/v1/users. Admin only, enforced by the
// service.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}

	list, err := s.users.List(r.Context(), actor)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// currentUser handles GET /api/v1/users/me.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}

	user, err := s.users.Get(r.Context(), actor, actor.ID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// updateCurrentUser handles PATCH /api/v1/users/me.
func (s *Server) updateCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	s.applyProfileUpdate(w, r, actor, actor.ID)
}

// getUser handles GET /api/v1/users/{id}. Self or admin.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	user, err := s.users.Get(r.Context(), actor, id)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// updateUser handles PATCH /api/v1/users/{id}. Self or admin.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	s.applyProfileUpdate(w, r, actor, id)
}

func (s *Server) applyProfileUpdate(w http.ResponseWriter, r *http.Request, actor authz.Subject, targetID string) {
	var update users.ProfileUpdate
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}

	user, err := s.users.UpdateProfile(r.Context(), actor, targetID, update)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// userStats handles GET /api/v1/users/{id}/stats. Self or admin.
func (s *Server) userStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	stats, err := s.users.Stats(r.Context(), actor, id)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

// updateRole handles PUT /api/v1/users/{id}/role. Admin only; demoting
// the last active admin is rejected.
func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	user, err := s.users.UpdateRole(r.Context(), actor, id, role)
	if err != nil {
		s.auditDenied(r, actor, err)
		writeDomainError(w, s.logger, err)
		return
	}

	// Cached profiles must not serve the old role.
	s.auth.Invalidate(id)
	s.recordAudit(r, audit.UserEvent(audit.EventRoleChange, actor.ID, id, map[string]interface{}{
		"new_role": string(role),
	}))
	httputil.WriteSuccess(w, user)
}

// deactivateUser handles POST /api/v1/users/{id}/deactivate. Admin
// only; the last active admin cannot be deactivated. Every live session
// of the target is revoked.
func (s *Server) deactivateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.users.Deactivate(r.Context(), actor, id); err != nil {
		s.auditDenied(r, actor, err)
		writeDomainError(w, s.logger, err)
		return
	}

	s.auth.Invalidate(id)
	s.recordAudit(r, audit.UserEvent(audit.EventDeactivation, actor.ID, id, nil))
	httputil.WriteNoContent(w)
}

// reactivateUser handles POST /api/v1/users/{id}/reactivate. Admin only.
func (s *Server) reactivateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.users.Reactivate(r.Context(), actor, id); err != nil {
		s.auditDenied(r, actor, err)
		writeDomainError(w, s.logger, err)
		return
	}

	s.auth.Invalidate(id)
	s.recordAudit(r, audit.UserEvent(audit.EventReactivation, actor.ID, id, nil))
	httputil.WriteNoContent(w)
}

// transferData handles POST /api/v1/users/{id}/transfer. Admin only;
// moves every row owned by {id} to the named recipient in one
// transaction.
func (s *Server) transferData(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		ToUserID string `json:"to_user_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.ToUserID, "to_user_id") {
		return
	}

	stats, err := s.users.TransferData(r.Context(), actor, id, req.ToUserID)
	if err != nil {
		s.auditDenied(r, actor, err)
		writeDomainError(w, s.logger, err)
		return
	}

	s.recordAudit(r, audit.UserEvent(audit.EventTransfer, actor.ID, id, map[string]interface{}{
		"to_user_id": req.ToUserID,
		"rows_moved": stats.Total,
	}))
	httputil.WriteSuccess(w, stats)
}

// removeUser handles DELETE /api/v1/users/{id}. Admin only; the
// target's sessions are revoked and its content cascaded per kind.
func (s *Server) removeUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.users.Remove(r.Context(), actor, id); err != nil {
		s.auditDenied(r, actor, err)
		writeDomainError(w, s.logger, err)
		return
	}

	s.auth.Invalidate(id)
	s.recordAudit(r, audit.UserEvent(audit.EventRemoval, actor.ID, id, nil))
	httputil.WriteNoContent(w)
}

// auditDenied records authorization denials for the audit trail;
// infrastructure errors are not audit events.
func (s *Server) auditDenied(r *http.Request, actor authz.Subject, err error) {
	if !authz.IsPermissionDenied(err) {
		return
	}
	s.recordAudit(r, audit.DeniedEvent(actor.ID, "", map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"reason": err.Error(),
	}))
}
