package audit

import (
	"context"
)

// Logger records audit events. Implementations must be safe for
// concurrent use.
type Logger interface {
	// Record persists one event. Callers treat failures as non-fatal.
	Record(ctx context.Context, event *Event) error
	Close() error
}

// NopLogger discards every event.
type NopLogger struct{}

func (NopLogger) Record(ctx context.Context, event *Event) error { return nil }
func (NopLogger) Close() error                                   { return nil }

// strp returns a pointer for optional actor/target fields; the empty
// string maps to NULL.
func strp(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// UserEvent builds an event for an action one user performed on another.
func UserEvent(eventType EventType, actorID, targetID string, detail map[string]interface{}) *Event {
	return &Event{
		Type:     eventType,
		ActorID:  strp(actorID),
		TargetID: strp(targetID),
		Detail:   detail,
	}
}

// DeniedEvent builds an access-denial event against a resource kind.
func DeniedEvent(actorID string, kind string, detail map[string]interface{}) *Event {
	return &Event{
		Type:         EventAccessDenied,
		ActorID:      strp(actorID),
		ResourceKind: kind,
		Detail:       detail,
	}
}
