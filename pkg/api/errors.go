package api

import (
	"errors"
	"net/http"

	"github.com/archon-labs/archon-authz/pkg/authz"
	"github.com/archon-labs/archon-authz/pkg/httputil"
	"github.com/archon-labs/archon-authz/pkg/middleware"
	"github.com/archon-labs/archon-authz/pkg/observability"
	"github.com/archon-labs/archon-authz/pkg/storage"
	"github.com/archon-labs/archon-authz/pkg/users"
)

// writeDomainError maps the typed errors of the service and storage
// layers onto HTTP responses. Denials keep enough structure for the
// client to explain itself; everything unrecognized is a 500 with the
// detail kept server-side.
func writeDomainError(w http.ResponseWriter, logger *observability.Logger, err error) {
	var (
		permErr     *authz.PermissionError
		roleErr     *authz.InvalidRoleError
		lastAdmin   *authz.LastAdminError
		transferErr *authz.OwnershipTransferError
	)

	switch {
	case errors.As(err, &permErr):
		details := map[string]string{"actual_role": string(permErr.ActualRole)}
		if permErr.RequiredRole != "" {
			details["required_role"] = string(permErr.RequiredRole)
		} else {
			details["required_permission"] = authz.PermissionLabel(permErr.Kind, permErr.Action)
		}
		httputil.WriteDetailedError(w, http.StatusForbidden, permErr.Error(), details)

	case errors.As(err, &transferErr):
		httputil.WriteForbidden(w, transferErr.Error())

	case errors.As(err, &lastAdmin):
		httputil.WriteErrorCode(w, http.StatusConflict, "last_admin", lastAdmin.Error())

	case errors.As(err, &roleErr):
		httputil.WriteBadRequest(w, roleErr.Error())

	case errors.Is(err, users.ErrInvalidEmail),
		errors.Is(err, users.ErrWeakPassword):
		httputil.WriteValidationError(w, err.Error())

	case errors.Is(err, users.ErrEmailTaken):
		httputil.WriteConflict(w, err.Error())

	case errors.Is(err, users.ErrInvalidCredentials):
		httputil.WriteErrorCode(w, http.StatusUnauthorized, "invalid_credentials", err.Error())

	case errors.Is(err, authz.ErrAccountDeactivated):
		httputil.WriteErrorCode(w, http.StatusUnauthorized, middleware.CodeDeactivated, err.Error())

	case errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())

	case errors.Is(err, storage.ErrWriteDenied),
		errors.Is(err, storage.ErrOwnershipViolation):
		httputil.WriteForbidden(w, err.Error())

	default:
		logger.WithError(err).Error("request failed")
		httputil.WriteInternalError(w, errors.New("internal error"))
	}
}
