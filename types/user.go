package types

import (
	"errors"
	"strings"
	"time"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleDeveloper Role = "developer"
)

// ErrInvalidRole is returned by ParseRole for values outside the known set.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole converts raw input into a Role. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleDeveloper:
		return true
	default:
		return false
	}
}

// User represents an account in the system.
// It contains identity, role, team membership, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It is unique across accounts and
	// is the lookup key for password resets.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role"`

	// TeamID references the team the user belongs to, if any.
	// Managers are expected to have no team; they relate to teams
	// through Team.ManagerID instead.
	TeamID *int `json:"team_id" db:"team_id"`

	// TeamName is the name of the referenced team. It is populated by
	// read queries only and never persisted.
	TeamName *string `json:"team_name,omitempty" db:"team_name"`

	// IsActive reports whether the account may log in.
	IsActive bool `json:"is_active" db:"is_active"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// InTeam reports whether u belongs to the given team.
func (u User) InTeam(teamID int) bool {
	return u.TeamID != nil && *u.TeamID == teamID
}

// SameTeam reports whether u and other share a non-null team.
func (u User) SameTeam(other User) bool {
	return u.TeamID != nil && other.TeamID != nil && *u.TeamID == *other.TeamID
}
