package types

import "time"

// Comment is a note left on a task.
type Comment struct {
	ID      int    `json:"id" db:"id"`
	TaskID  int    `json:"task_id" db:"task_id"`
	UserID  *int   `json:"user_id" db:"user_id"`
	Content string `json:"content" db:"content"`

	// Read-model fields populated by joins.
	Username  *string `json:"user_username,omitempty" db:"user_username"`
	TaskTitle string  `json:"task_title,omitempty" db:"task_title"`

	// TaskAssigneeID and ProjectOwnerID come from the parent task and
	// project; they take part in authorization only.
	TaskAssigneeID *int `json:"-" db:"task_assignee_id"`
	ProjectOwnerID *int `json:"-" db:"project_owner_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Parties returns the author, the task assignee and the project owner.
func (c Comment) Parties() Parties {
	return Parties{
		Owners:    appendOptional(nil, c.ProjectOwnerID),
		Assignees: appendOptional(nil, c.TaskAssigneeID),
		Authors:   appendOptional(nil, c.UserID),
	}
}
