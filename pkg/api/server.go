package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/archon-labs/archon-authz/pkg/audit"
	"github.com/archon-labs/archon-authz/pkg/httputil"
	"github.com/archon-labs/archon-authz/pkg/middleware"
	"github.com/archon-labs/archon-authz/pkg/observability"
	"github.com/archon-labs/archon-authz/pkg/session"
	"github.com/archon-labs/archon-authz/pkg/storage"
	"github.com/archon-labs/archon-authz/pkg/users"
)

const maxBodyBytes = 1 << 20 // 1MB request bodies

// Options carries the dependencies of the HTTP surface.
type Options struct {
	Users     *users.Service
	Resources storage.ResourceStore
	Tokens    *session.Manager
	Auth      *middleware.Auth
	Audit     audit.Logger
	Logger    *observability.Logger

	// AuditReader serves the admin audit endpoint. Nil yields empty
	// results.
	AuditReader AuditReader

	// CredentialLimit rate-limits login and register per client IP.
	// Usually middleware.RateLimit or middleware.DistributedRateLimit.
	// Nil disables the limit (tests).
	CredentialLimit func(http.Handler) http.Handler

	// CORSOrigins lists the allowed browser origins. Empty disables CORS
	// headers.
	CORSOrigins []string
}

// Server is the HTTP API server.
type Server struct {
	router      *mux.Router
	users       *users.Service
	resources   storage.ResourceStore
	tokens      *session.Manager
	auth        *middleware.Auth
	audit       audit.Logger
	auditReader AuditReader
	logger      *observability.Logger
}

// NewServer wires the routes and shared middleware.
func NewServer(opts Options) *Server {
	auditLog := opts.Audit
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}

	s := &Server{
		router:      mux.NewRouter(),
		users:       opts.Users,
		resources:   opts.Resources,
		tokens:      opts.Tokens,
		auth:        opts.Auth,
		audit:       auditLog,
		auditReader: opts.AuditReader,
		logger:      opts.Logger,
	}
	s.setupRoutes(opts)
	return s
}

func (s *Server) setupRoutes(opts Options) {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)
	if len(opts.CORSOrigins) > 0 {
		s.router.Use(httputil.CORSMiddleware(opts.CORSOrigins))
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Credential endpoints carry a per-IP rate limit; refresh and logout
	// do not, they are already gated on holding a valid token.
	limit := func(h http.HandlerFunc) http.Handler {
		if opts.CredentialLimit == nil {
			return h
		}
		return opts.CredentialLimit(h)
	}
	api.Handle("/auth/register", limit(s.register)).Methods(http.MethodPost)
	api.Handle("/auth/login", limit(s.login)).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.refresh).Methods(http.MethodPost)
	api.Handle("/auth/logout", s.auth.Handler(http.HandlerFunc(s.logout))).Methods(http.MethodPost)

	userRouter := api.PathPrefix("/users").Subrouter()
	userRouter.Use(s.auth.Handler)
	userRouter.HandleFunc("", s.listUsers).Methods(http.MethodGet)
	userRouter.HandleFunc("/me", s.currentUser).Methods(http.MethodGet)
	userRouter.HandleFunc("/me", s.updateCurrentUser).Methods(http.MethodPatch)
	userRouter.HandleFunc("/{id}", s.getUser).Methods(http.MethodGet)
	userRouter.HandleFunc("/{id}", s.updateUser).Methods(http.MethodPatch)
	userRouter.HandleFunc("/{id}", s.removeUser).Methods(http.MethodDelete)
	userRouter.HandleFunc("/{id}/stats", s.userStats).Methods(http.MethodGet)
	userRouter.HandleFunc("/{id}/role", s.updateRole).Methods(http.MethodPut)
	userRouter.HandleFunc("/{id}/deactivate", s.deactivateUser).Methods(http.MethodPost)
	userRouter.HandleFunc("/{id}/reactivate", s.reactivateUser).Methods(http.MethodPost)
	userRouter.HandleFunc("/{id}/transfer", s.transferData).Methods(http.MethodPost)

	resRouter := api.PathPrefix("/resources").Subrouter()
	resRouter.Use(s.auth.Handler)
	resRouter.HandleFunc("/{kind}", s.createResource).Methods(http.MethodPost)
	resRouter.HandleFunc("/{kind}", s.listResources).Methods(http.MethodGet)
	resRouter.HandleFunc("/{kind}/{id}", s.getResource).Methods(http.MethodGet)
	resRouter.HandleFunc("/{kind}/{id}", s.updateResource).Methods(http.MethodPut)
	resRouter.HandleFunc("/{kind}/{id}", s.deleteResource).Methods(http.MethodDelete)
	resRouter.HandleFunc("/{kind}/{id}/assignee", s.setAssignee).Methods(http.MethodPut)

	auditRouter := api.PathPrefix("/audit").Subrouter()
	auditRouter.Use(s.auth.Handler, middleware.RequireAdmin)
	auditRouter.HandleFunc("/events", s.listAuditEvents).Methods(http.MethodGet)
}

// Router returns the configured router for mounting.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
