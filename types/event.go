package types

import "time"

const (
	EventAccountCreated = "account.created"
	EventAccessAssigned = "access.assigned"
)

// AccountEvent is the JSON payload published for account lifecycle changes.
type AccountEvent struct {
	Type          string    `json:"type"`
	UserID        int       `json:"user_id"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	Active        bool      `json:"active"`
	PermissionIDs []int     `json:"user_permissions,omitempty"`
	GroupIDs      []int     `json:"groups,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
