package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/archon-labs/archon-authz/pkg/audit"
	"github.com/archon-labs/archon-authz/pkg/authz"
	"github.com/archon-labs/archon-authz/pkg/middleware"
	"github.com/archon-labs/archon-authz/pkg/observability"
	"github.com/archon-labs/archon-authz/pkg/session"
	"github.com/archon-labs/archon-authz/pkg/storage"
	"github.com/archon-labs/archon-authz/pkg/users"
)

// memoryResourceStore enforces the predicates over an in-memory map, so
// handler tests exercise the same visibility semantics as the SQL store.
type memoryResourceStore struct {
	mu   sync.Mutex
	rows map[string]*storage.Resource
}

func newMemoryResourceStore() *memoryResourceStore {
	return &memoryResourceStore{rows: make(map[string]*storage.Resource)}
}

func (m *memoryResourceStore) Create(ctx context.Context, subject authz.Subject, res *storage.Resource) error {
	if subject.Role == authz.RoleGuest {
		return storage.ErrWriteDenied
	}
	if res.OwnerID != nil && *res.OwnerID != subject.ID {
		return storage.ErrOwnershipViolation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	m.rows[res.ID] = res
	return nil
}

func (m *memoryResourceStore) Get(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string) (*storage.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok || res.Kind != kind || !authz.CanView(subject, res.AuthzResource()) {
		return nil, storage.ErrNotFound
	}
	return res, nil
}

func (m *memoryResourceStore) List(ctx context.Context, subject authz.Subject, kind authz.ResourceKind) ([]*storage.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.Resource
	for _, res := range m.rows {
		if res.Kind == kind && authz.CanView(subject, res.AuthzResource()) {
			out = append(out, res)
		}
	}
	return out, nil
}

// editable mirrors the SQL store's error split on denied mutations: an
// invisible row reads as missing, a visible but uneditable one surfaces
// the permission problem.
func (m *memoryResourceStore) editable(subject authz.Subject, kind authz.ResourceKind, id string, action authz.Action) (*storage.Resource, error) {
	res, ok := m.rows[id]
	if !ok || res.Kind != kind || !authz.CanView(subject, res.AuthzResource()) {
		return nil, storage.ErrNotFound
	}
	if !authz.CanEdit(subject, res.AuthzResource()) {
		return nil, &authz.PermissionError{Kind: kind, Action: action, ActualRole: subject.Role}
	}
	return res, nil
}

func (m *memoryResourceStore) Update(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, err := m.editable(subject, kind, id, authz.ActionWrite)
	if err != nil {
		return err
	}
	res.Payload = payload
	res.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryResourceStore) Delete(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.editable(subject, kind, id, authz.ActionDelete); err != nil {
		return err
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryResourceStore) SetAssignee(ctx context.Context, subject authz.Subject, kind authz.ResourceKind, id string, assigneeID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, err := m.editable(subject, kind, id, authz.ActionWrite)
	if err != nil {
		return err
	}
	res.AssigneeID = assigneeID
	return nil
}

// recordingAudit captures events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAudit) Record(ctx context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) byType(eventType audit.EventType) []*audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	server    *Server
	tokens    *session.Manager
	userMock  sqlmock.Sqlmock
	resources *memoryResourceStore
	audit     *recordingAudit
}

// fakeAdminStore satisfies storage.AdminStore for the user endpoints.
type fakeAdminStore struct{}

func (fakeAdminStore) TransferOwnership(ctx context.Context, subject authz.Subject, fromID, toID string) (*storage.TransferStats, error) {
	if !authz.IsAdmin(subject) {
		return nil, &authz.OwnershipTransferError{SubjectID: subject.ID, Role: subject.Role}
	}
	return &storage.TransferStats{Total: 2, RowsByKind: map[authz.ResourceKind]int64{authz.KindProject: 2}}, nil
}

func (fakeAdminStore) CascadeRemoveOwner(ctx context.Context, ownerID string) error { return nil }

func (fakeAdminStore) CountByOwner(ctx context.Context, userID string) (map[string]int64, error) {
	return map[string]int64{"project": 2}, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sessionStore := session.NewStoreFromClient(client)
	tokens, err := session.NewManager(session.ManagerConfig{Secret: "test-secret"}, sessionStore)
	require.NoError(t, err)

	db, userMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	// Requests from different users interleave their profile lookups.
	userMock.MatchExpectationsInOrder(false)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	userStore := users.NewStore(db)
	userService := users.NewService(userStore, fakeAdminStore{}, sessionStore, logger)

	auth, err := middleware.NewAuth(tokens, userStore, logger)
	require.NoError(t, err)

	resources := newMemoryResourceStore()
	trail := &recordingAudit{}
	server := NewServer(Options{
		Users:     userService,
		Resources: resources,
		Tokens:    tokens,
		Auth:      auth,
		Audit:     trail,
		Logger:    logger,
	})

	return &fixture{
		server:    server,
		tokens:    tokens,
		userMock:  userMock,
		resources: resources,
		audit:     trail,
	}
}

func profileRow(id, role string, active bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "email", "full_name", "avatar_url", "role", "is_active",
		"password_hash", "metadata", "created_at", "updated_at",
	}).AddRow(id, id+"@example.com", "", "", role, active, "hash", "{}", now, now)
}

// login issues a token pair and arms the profile lookup the auth
// middleware performs on the first request.
func (f *fixture) login(t *testing.T, userID string, role authz.Role) string {
	t.Helper()
	pair, err := f.tokens.Issue(context.Background(), userID, role)
	require.NoError(t, err)
	f.expectProfile(userID, string(role), true)
	return pair.AccessToken
}

func (f *fixture) expectProfile(id, role string, active bool) {
	f.userMock.ExpectQuery("SELECT (.+) FROM user_profiles WHERE id").
		WithArgs(id).
		WillReturnRows(profileRow(id, role, active))
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}
