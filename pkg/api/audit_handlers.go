package api

import (
	"context"
	"net/http"

	"github.com/archon-labs/archon-authz/pkg/audit"
	"github.com/archon-labs/archon-authz/pkg/httputil"
)

// AuditReader reads back recorded audit events. Satisfied by
// *audit.DBLogger.
type AuditReader interface {
	List(ctx context.Context, filter audit.Filter) ([]*audit.Event, error)
}

// listAuditEvents handles GET /api/v1/audit/events. Admin only; the
// route sits behind RequireAdmin.
func (s *Server) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	if s.auditReader == nil {
		httputil.WriteSuccess(w, []*audit.Event{})
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid limit")
		return
	}

	events, err := s.auditReader.List(r.Context(), audit.Filter{
		Type:    audit.EventType(httputil.ParseQueryString(r, "type", "")),
		ActorID: httputil.ParseQueryString(r, "actor_id", ""),
		Limit:   limit,
	})
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	if events == nil {
		events = []*audit.Event{}
	}
	httputil.WriteSuccess(w, events)
}
