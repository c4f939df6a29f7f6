package api

import (
	"net/http"
	"strings"

	"github.com/archon-labs/archon-authz/pkg/audit"
	"github.com/archon-labs/archon-authz/pkg/contextkeys"
	"github.com/archon-labs/archon-authz/pkg/httputil"
	"github.com/archon-labs/archon-authz/pkg/session"
	"github.com/archon-labs/archon-authz/pkg/users"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type authResponse struct {
	User   *users.User        `json:"user"`
	Tokens *session.TokenPair `json:"tokens"`
}

// register handles POST /api/v1/auth/register. The first account in an
// empty system becomes the admin; everyone after that starts as a
// regular user.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	pair, err := s.tokens.Issue(r.Context(), user.ID, user.Role)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	s.recordAudit(r, audit.UserEvent(audit.EventRegister, user.ID, "", map[string]interface{}{
		"role": string(user.Role),
	}))
	httputil.WriteCreated(w, authResponse{User: user, Tokens: pair})
}

// login handles POST /api/v1/auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	pair, err := s.tokens.Issue(r.Context(), user.ID, user.Role)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	s.recordAudit(r, audit.UserEvent(audit.EventLogin, user.ID, "", nil))
	httputil.WriteSuccess(w, authResponse{User: user, Tokens: pair})
}

// refresh handles POST /api/v1/auth/refresh. The presented refresh
// token is revoked and a new pair issued; replaying the old token
// fails.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.RefreshToken, "refresh_token") {
		return
	}

	pair, err := s.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteErrorCode(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token rejected")
		return
	}
	httputil.WriteSuccess(w, pair)
}

// logout handles POST /api/v1/auth/logout. Revoking either token of a
// pair ends the whole session.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		httputil.WriteUnauthorized(w, "missing bearer token")
		return
	}

	if err := s.tokens.Revoke(r.Context(), header[len(prefix):]); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	if subject, ok := contextkeys.GetSubject(r.Context()); ok {
		s.recordAudit(r, audit.UserEvent(audit.EventLogout, subject.ID, "", nil))
	}
	httputil.WriteNoContent(w)
}

// recordAudit persists an audit event without letting a trail failure
// fail the request.
func (s *Server) recordAudit(r *http.Request, event *audit.Event) {
	if err := s.audit.Record(r.Context(), event); err != nil {
		s.logger.WithError(err).WithField("event_type", string(event.Type)).Warn("audit write failed")
	}
}
