package types

import (
	"strings"
	"time"
)

// Role selects which profile collection backs a user's display name.
type Role string

const (
	// RoleNone is used for staff accounts without a satellite profile.
	RoleNone       Role = ""
	RoleSingle     Role = "single"
	RoleMatchmaker Role = "matchmaker"
	RoleAdmin      Role = "admin"
)

// ParseRole converts a textual role to a Role. The empty string and "none"
// both map to RoleNone.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleNone, "none":
		return RoleNone, true
	case RoleSingle:
		return RoleSingle, true
	case RoleMatchmaker:
		return RoleMatchmaker, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return RoleNone, false
	}
}

// RoleFromFlags maps the legacy is_single/is_matchmaker/is_admin triple to a
// Role. It reports false when more than one flag is set.
func RoleFromFlags(single, matchmaker, admin bool) (Role, bool) {
	role := RoleNone
	set := 0
	if single {
		role = RoleSingle
		set++
	}
	if matchmaker {
		role = RoleMatchmaker
		set++
	}
	if admin {
		role = RoleAdmin
		set++
	}
	if set > 1 {
		return RoleNone, false
	}
	return role, true
}

// ProfileKind returns the profile collection linked to the role, if any.
func (r Role) ProfileKind() (ProfileKind, bool) {
	switch r {
	case RoleSingle:
		return ProfileSingle, true
	case RoleMatchmaker:
		return ProfileMatchmaker, true
	default:
		return "", false
	}
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// User represents an account in the system.
// It contains identity, role, access-control and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the unique login identity of the user.
	Email string `json:"email" db:"email"`

	// Username is an optional display handle.
	Username string `json:"username,omitempty" db:"username"`

	// Mobile is an optional phone number.
	Mobile string `json:"mobile,omitempty" db:"mobile"`

	// FirstName and LastName are only consulted for users without a role
	// profile. Use services.NameResolver to get the display name.
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// Role selects the backing profile collection.
	Role Role `json:"role" db:"role"`

	IsStaff     bool `json:"is_staff" db:"is_staff"`
	IsActive    bool `json:"is_active" db:"is_active"`
	IsSuperuser bool `json:"is_superuser" db:"is_superuser"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Groups and Permissions hold the ids of the user's group memberships and
	// directly granted permissions.
	Groups      []int `json:"groups" db:"-"`
	Permissions []int `json:"user_permissions" db:"-"`

	// DateJoined is the timestamp when the user account was created.
	DateJoined time.Time `json:"date_joined" db:"date_joined"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`
}

func (u User) IsSingle() bool     { return u.Role == RoleSingle }
func (u User) IsMatchmaker() bool { return u.Role == RoleMatchmaker }
func (u User) IsAdmin() bool      { return u.Role == RoleAdmin }
