package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDBLogger(db), mock
}

func TestRecord(t *testing.T) {
	logger, mock := newTestLogger(t)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("user.role_change", "admin-1", "user-2", nil, []byte(`{"new_role":"viewer","old_role":"user"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := UserEvent(EventRoleChange, "admin-1", "user-2", map[string]interface{}{
		"old_role": "user",
		"new_role": "viewer",
	})
	require.NoError(t, logger.Record(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeniedCarriesKind(t *testing.T) {
	logger, mock := newTestLogger(t)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("access.denied", "guest-1", nil, "task", []byte(`{"action":"write"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := DeniedEvent("guest-1", "task", map[string]interface{}{"action": "write"})
	require.NoError(t, logger.Record(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEmptyDetail(t *testing.T) {
	logger, mock := newTestLogger(t)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("user.login", "user-1", nil, nil, []byte("{}")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, logger.Record(context.Background(), UserEvent(EventLogin, "user-1", "", nil)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListFilters(t *testing.T) {
	logger, mock := newTestLogger(t)

	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "event_type", "actor_id", "target_id", "resource_kind", "detail", "created_at"}).
		AddRow(int64(7), "user.deactivate", "admin-1", "user-2", nil, []byte(`{"reason":"offboarding"}`), created)

	mock.ExpectQuery("SELECT id, event_type, actor_id, target_id, resource_kind, detail(.+)event_type = \\$1 AND actor_id = \\$2(.+)LIMIT \\$3").
		WithArgs("user.deactivate", "admin-1", 50).
		WillReturnRows(rows)

	events, err := logger.List(context.Background(), Filter{
		Type:    EventDeactivation,
		ActorID: "admin-1",
		Limit:   50,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventDeactivation, events[0].Type)
	assert.Equal(t, "admin-1", *events[0].ActorID)
	assert.Equal(t, "offboarding", events[0].Detail["reason"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDefaultLimit(t *testing.T) {
	logger, mock := newTestLogger(t)

	mock.ExpectQuery("SELECT id, event_type(.+)LIMIT \\$1").
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "actor_id", "target_id", "resource_kind", "detail", "created_at"}))

	events, err := logger.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, events)
	require.NoError(t, mock.ExpectationsWereMet())
}
