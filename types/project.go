package types

import (
	"errors"
	"strings"
	"time"
)

// Project is a container of tasks owned by the admin who created it.
type Project struct {
	// ID is the unique identifier of the project.
	ID int `json:"id" db:"id"`

	// Name is the human-readable project name.
	Name string `json:"name" db:"name"`

	// Description is a free-form summary of the project.
	Description string `json:"description" db:"description"`

	// OwnerID references the user that owns the project.
	OwnerID int `json:"owner_id" db:"owner_id"`

	// OwnerUsername is populated by read queries.
	OwnerUsername string `json:"owner_username,omitempty" db:"owner_username"`

	// StartDate and EndDate bound the planned schedule. Both are optional.
	StartDate *time.Time `json:"start_date" db:"start_date"`
	EndDate   *time.Time `json:"end_date" db:"end_date"`

	// AssigneeIDs holds the distinct assignees of the project's tasks.
	// It participates in authorization and is never serialized.
	AssigneeIDs []int `json:"-" db:"-"`

	// Tasks is filled only on detail reads.
	Tasks []Task `json:"tasks,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Parties returns the owner and every task assignee.
func (p Project) Parties() Parties {
	return Parties{
		Owners:    []int{p.OwnerID},
		Assignees: append([]int(nil), p.AssigneeIDs...),
	}
}

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// ErrInvalidTaskStatus is returned by ParseTaskStatus for unknown values.
var ErrInvalidTaskStatus = errors.New("invalid task status")

// ParseTaskStatus converts raw input into a TaskStatus. An empty value maps
// to TaskStatusTodo.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case "":
		return TaskStatusTodo, nil
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return status, nil
	default:
		return "", ErrInvalidTaskStatus
	}
}

// Task is a unit of work inside a project, optionally assigned to a user.
type Task struct {
	ID          int    `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`

	// ProjectID references the owning project.
	ProjectID int `json:"project_id" db:"project_id"`

	// AssignedTo references the user responsible for the task, if any.
	AssignedTo *int `json:"assigned_to" db:"assigned_to"`

	// AssignedToUsername is populated by read queries.
	AssignedToUsername *string `json:"assigned_to_username,omitempty" db:"assigned_to_username"`

	Status  TaskStatus `json:"status" db:"status"`
	DueDate *time.Time `json:"due_date" db:"due_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Parties returns the assignee, if set.
func (t Task) Parties() Parties {
	return Parties{Assignees: appendOptional(nil, t.AssignedTo)}
}
