package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/archon-labs/archon-authz/pkg/audit"
	"github.com/archon-labs/archon-authz/pkg/authz"
	"github.com/archon-labs/archon-authz/pkg/httputil"
	"github.com/archon-labs/archon-authz/pkg/storage"
)

func parseKind(w http.ResponseWriter, r *http.Request) (authz.ResourceKind, bool) {
	raw, ok := httputil.ParsePathStringOrError(w, r, "kind")
	if !ok {
		return "", false
	}
	kind, err := authz.ParseResourceKind(raw)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return "", false
	}
	return kind, true
}

type createResourceRequest struct {
	// Shared marks the row as unowned (visible to every non-guest, and
	// to guests for guest-visible kinds). When false and OwnerID is
	// omitted, the row is owned by the caller.
	Shared     bool            `json:"shared,omitempty"`
	OwnerID    *string         `json:"owner_id,omitempty"`
	AssigneeID *string         `json:"assignee_id,omitempty"`
	ProjectID  *string         `json:"project_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// createResource handles POST /api/v1/resources/{kind}. The owner must
// be the caller or absent; naming anyone else is rejected before the
// insert.
func (s *Server) createResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}

	var req createResourceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	res := &storage.Resource{
		Kind:       kind,
		OwnerID:    req.OwnerID,
		AssigneeID: req.AssigneeID,
		ProjectID:  req.ProjectID,
		Payload:    req.Payload,
	}
	if !req.Shared && res.OwnerID == nil {
		res.OwnerID = &actor.ID
	}

	if err := s.resources.Create(r.Context(), actor, res); err != nil {
		s.auditResourceDenied(r, actor, kind, authz.ActionWrite, err)
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteCreated(w, res)
}

// listResources handles GET /api/v1/resources/{kind}. The result set is
// already filtered to what the caller may view.
func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}

	list, err := s.resources.List(r.Context(), actor, kind)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	if list == nil {
		list = []*storage.Resource{}
	}
	httputil.WriteSuccess(w, list)
}

// getResource handles GET /api/v1/resources/{kind}/{id}. A row the
// caller may not view is a 404, same as one that does not exist.
func (s *Server) getResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	res, err := s.resources.Get(r.Context(), actor, kind, id)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteSuccess(w, res)
}

// updateResource handles PUT /api/v1/resources/{kind}/{id}, replacing
// the payload of a row the caller may edit.
func (s *Server) updateResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Payload json.RawMessage `json:"payload"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.resources.Update(r.Context(), actor, kind, id, req.Payload); err != nil {
		s.auditResourceDenied(r, actor, kind, authz.ActionWrite, err)
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}

// deleteResource handles DELETE /api/v1/resources/{kind}/{id}.
func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.resources.Delete(r.Context(), actor, kind, id); err != nil {
		s.auditResourceDenied(r, actor, kind, authz.ActionDelete, err)
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}

// setAssignee handles PUT /api/v1/resources/{kind}/{id}/assignee.
// A null assignee_id clears the assignment.
func (s *Server) setAssignee(w http.ResponseWriter, r *http.Request) {
	actor, ok := subject(w, r)
	if !ok {
		return
	}
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		AssigneeID *string `json:"assignee_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.resources.SetAssignee(r.Context(), actor, kind, id, req.AssigneeID); err != nil {
		s.auditResourceDenied(r, actor, kind, authz.ActionWrite, err)
		writeDomainError(w, s.logger, err)
		return
	}
	httputil.WriteNoContent(w)
}

// auditResourceDenied records write denials against protected rows.
func (s *Server) auditResourceDenied(r *http.Request, actor authz.Subject, kind authz.ResourceKind, action authz.Action, err error) {
	if !errors.Is(err, storage.ErrWriteDenied) && !errors.Is(err, storage.ErrOwnershipViolation) &&
		!authz.IsPermissionDenied(err) {
		return
	}
	s.recordAudit(r, audit.DeniedEvent(actor.ID, string(kind), map[string]interface{}{
		"action": string(action),
		"reason": err.Error(),
	}))
}
