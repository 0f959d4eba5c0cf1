package types

import "time"

// Team groups developers under exactly one manager.
// Members are not stored on the team; they are the users whose TeamID
// points at it.
type Team struct {
	// ID is the unique identifier of the team.
	ID int `json:"id" db:"id"`

	// Name is the human-readable team name.
	Name string `json:"name" db:"name"`

	// ManagerID references the user managing this team. A manager may
	// manage more than one team.
	ManagerID int `json:"manager_id" db:"manager_id"`

	// ManagerName is the manager's username, populated by read queries.
	ManagerName string `json:"manager_name,omitempty" db:"manager_name"`

	// MemberCount is the number of users assigned to the team, populated
	// by read queries.
	MemberCount int `json:"member_count" db:"member_count"`

	// CreatedAt is the timestamp when the team was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the team.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
