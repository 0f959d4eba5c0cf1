package types

import "time"

// TimeLog records hours a user spent on a task. A user logs time for a
// given task at most once.
type TimeLog struct {
	ID          int     `json:"id" db:"id"`
	TaskID      int     `json:"task_id" db:"task_id"`
	UserID      *int    `json:"user_id" db:"user_id"`
	Hours       float64 `json:"hours" db:"hours"`
	Description string  `json:"description" db:"description"`

	Username  *string `json:"user_username,omitempty" db:"user_username"`
	TaskTitle string  `json:"task_title,omitempty" db:"task_title"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Parties returns the author only.
func (l TimeLog) Parties() Parties {
	return Parties{Authors: appendOptional(nil, l.UserID)}
}
