package gate

import (
	"net/http"
	"net/url"

	"github.com/archon-labs/archon-authz/pkg/authz"
	"github.com/archon-labs/archon-authz/pkg/contextkeys"
	"github.com/archon-labs/archon-authz/pkg/httputil"
)

// LoginPath is where unauthenticated subjects are sent. The intended
// destination rides along as the "next" query parameter.
const LoginPath = "/login"

// Outcome is what a route guard tells the caller to do.
type Outcome string

const (
	// RenderChildren: the subject passes every requirement.
	RenderChildren Outcome = "render"
	// RedirectToLogin: no subject; redirect preserving the destination.
	RedirectToLogin Outcome = "redirect"
	// RenderDenied: authenticated but failing a requirement; render the
	// denial inline, no redirect.
	RenderDenied Outcome = "denied"
)

// Requirement is what a route or component demands. Zero-value fields
// are not checked; an empty Requirement only requires authentication.
type Requirement struct {
	// Role requires HasRole to pass for this role.
	Role authz.Role
	// Kind and Action require HasPermission to pass.
	Kind   authz.ResourceKind
	Action authz.Action
}

// Decision is the guard verdict, with enough context for the denial
// message to name what was required against what the subject holds.
type Decision struct {
	Outcome            Outcome    `json:"outcome"`
	RedirectTo         string     `json:"redirect_to,omitempty"`
	RequiredRole       authz.Role `json:"required_role,omitempty"`
	RequiredPermission string     `json:"required_permission,omitempty"`
	ActualRole         authz.Role `json:"actual_role,omitempty"`
	Deactivated        bool       `json:"deactivated,omitempty"`
}

// HasRole reports whether the subject satisfies a role requirement. An
// admin requirement goes through IsAdmin so a deactivated admin never
// passes; any other role is a plain equality check.
func HasRole(subject authz.Subject, role authz.Role) bool {
	if role == authz.RoleAdmin {
		return authz.IsAdmin(subject)
	}
	return subject.Role == role
}

// HasPermission reports whether the subject's role can perform the
// action on resources of the kind at all. It is evaluated through the
// predicate engine against canonical resource shapes: a shared
// (unowned) resource for reads, a self-owned resource for writes. The
// answer is "is there any resource of this kind the predicate would
// allow", which is exactly the affordance question the UI asks.
func HasPermission(subject authz.Subject, kind authz.ResourceKind, action authz.Action) bool {
	switch action {
	case authz.ActionRead:
		return authz.CanView(subject, authz.Shared(kind))
	case authz.ActionWrite, authz.ActionDelete:
		return authz.CanEdit(subject, authz.Owned(kind, subject.ID))
	default:
		return false
	}
}

// Evaluate computes the guard decision for an optional subject against a
// requirement. intendedPath is the destination to return to after login.
func Evaluate(subject *authz.Subject, req Requirement, intendedPath string) Decision {
	if subject == nil {
		redirect := LoginPath
		if intendedPath != "" {
			redirect += "?next=" + url.QueryEscape(intendedPath)
		}
		return Decision{Outcome: RedirectToLogin, RedirectTo: redirect}
	}

	if !subject.Active {
		return Decision{
			Outcome:     RenderDenied,
			ActualRole:  subject.Role,
			Deactivated: true,
		}
	}

	if req.Role != "" && !HasRole(*subject, req.Role) {
		return Decision{
			Outcome:      RenderDenied,
			RequiredRole: req.Role,
			ActualRole:   subject.Role,
		}
	}

	if req.Kind != "" && !HasPermission(*subject, req.Kind, req.Action) {
		return Decision{
			Outcome:            RenderDenied,
			RequiredPermission: authz.PermissionLabel(req.Kind, req.Action),
			ActualRole:         subject.Role,
		}
	}

	return Decision{Outcome: RenderChildren}
}

// Guard wraps a handler with a requirement, translating the decision to
// HTTP: redirect for the unauthenticated, 403 with the decision payload
// for the denied, 401 with the deactivated code so the client forces a
// logout.
func Guard(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var subject *authz.Subject
			if s, ok := contextkeys.GetSubject(r.Context()); ok {
				subject = &s
			}

			decision := Evaluate(subject, req, r.URL.RequestURI())
			switch decision.Outcome {
			case RenderChildren:
				next.ServeHTTP(w, r)
			case RedirectToLogin:
				http.Redirect(w, r, decision.RedirectTo, http.StatusFound)
			default:
				if decision.Deactivated {
					httputil.WriteErrorCode(w, http.StatusUnauthorized, "account_deactivated", "account deactivated")
					return
				}
				httputil.WriteJSON(w, http.StatusForbidden, decision)
			}
		})
	}
}
