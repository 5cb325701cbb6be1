package chat

import "time"

// Role tags the author of a turn. The set is closed; anything else is
// rejected at the store boundary.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Turn is one immutable message in a session. Turns are never updated or
// deleted once written; CreatedAt is assigned by the store and is strictly
// increasing within a session.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    *string   `json:"userId,omitempty"`
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
