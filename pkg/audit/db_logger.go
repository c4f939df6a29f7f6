package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBLogger persists audit events to the audit_events table. The table is
// created by the storage migrations.
type DBLogger struct {
	db *sql.DB
}

func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

var _ Logger = (*DBLogger)(nil)

// Record inserts one event. The database assigns id and created_at.
func (l *DBLogger) Record(ctx context.Context, event *Event) error {
	detail, err := event.detailJSON()
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}

	var kind *string
	if event.ResourceKind != "" {
		kind = &event.ResourceKind
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, actor_id, target_id, resource_kind, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		string(event.Type), event.ActorID, event.TargetID, kind, detail)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (l *DBLogger) Close() error { return nil }

// Filter narrows List results. Zero-value fields are not applied.
type Filter struct {
	Type    EventType
	ActorID string
	Since   time.Time
	Limit   int
}

// List returns events newest first, for the admin audit endpoint.
func (l *DBLogger) List(ctx context.Context, filter Filter) ([]*Event, error) {
	query := `
		SELECT id, event_type, actor_id, target_id, resource_kind, detail, created_at
		FROM audit_events WHERE 1=1`
	var args []interface{}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			event  Event
			kind   sql.NullString
			detail []byte
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.ActorID, &event.TargetID, &kind, &detail, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ResourceKind = kind.String
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}
