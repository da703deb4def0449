package types

import "time"

// ProfileKind names one of the per-role profile collections.
type ProfileKind string

const (
	ProfileSingle     ProfileKind = "single"
	ProfileMatchmaker ProfileKind = "matchmaker"
	// ProfileAdmin records are owned by the admin tooling. They never back a
	// display name and no role links one at registration.
	ProfileAdmin ProfileKind = "admin"
)

// Profile is a per-role record carrying the display name of a non-staff user.
type Profile struct {
	ID        int         `json:"id" db:"id"`
	UserID    int         `json:"user_id" db:"user_id"`
	Kind      ProfileKind `json:"kind" db:"-"`
	FirstName string      `json:"first_name" db:"first_name"`
	LastName  string      `json:"last_name" db:"last_name"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}
