package users

import (
	"time"

	"github.com/archon-labs/archon-authz/pkg/authz"
)

// User is one account row in user_profiles.
type User struct {
	ID        string                 `json:"id"`
	Email     string                 `json:"email"`
	FullName  string                 `json:"full_name,omitempty"`
	AvatarURL string                 `json:"avatar_url,omitempty"`
	Role      authz.Role             `json:"role"`
	Active    bool                   `json:"is_active"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`

	// PasswordHash is never serialized; it only travels between the store
	// and the credential check.
	PasswordHash string `json:"-"`
}

// Subject projects the user onto the predicate engine's view of it.
func (u *User) Subject() authz.Subject {
	return authz.Subject{ID: u.ID, Role: u.Role, Active: u.Active}
}

// ProfileUpdate carries the self-service mutable fields. Nil means leave
// unchanged.
type ProfileUpdate struct {
	FullName  *string                `json:"full_name,omitempty"`
	AvatarURL *string                `json:"avatar_url,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Stats summarizes the data attributed to one user, per resource kind.
type Stats struct {
	UserID     string           `json:"user_id"`
	Counts     map[string]int64 `json:"counts"`
	TotalOwned int64            `json:"total_owned"`
}
