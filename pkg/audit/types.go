package audit

import (
	"encoding/json"
	"time"
)

// EventType identifies what happened.
type EventType string

const (
	// Authentication lifecycle.
	EventRegister EventType = "user.register"
	EventLogin    EventType = "user.login"
	EventLogout   EventType = "user.logout"

	// Administrative mutations of user accounts.
	EventRoleChange   EventType = "user.role_change"
	EventDeactivation EventType = "user.deactivate"
	EventReactivation EventType = "user.reactivate"
	EventRemoval      EventType = "user.remove"
	EventTransfer     EventType = "user.transfer_data"

	// Authorization denials worth keeping a trail of.
	EventAccessDenied EventType = "access.denied"
)

// Event is one audit record. ActorID is the subject that performed the
// action, TargetID the user it was performed on (when different).
// Detail carries event-specific fields such as old_role/new_role.
type Event struct {
	ID           int64                  `json:"id,omitempty"`
	Type         EventType              `json:"type"`
	ActorID      *string                `json:"actor_id,omitempty"`
	TargetID     *string                `json:"target_id,omitempty"`
	ResourceKind string                 `json:"resource_kind,omitempty"`
	Detail       map[string]interface{} `json:"detail,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (e *Event) detailJSON() ([]byte, error) {
	if e.Detail == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Detail)
}
