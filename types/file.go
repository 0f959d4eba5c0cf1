package types

import "time"

// File is an upload attached to a task. The content lives in object
// storage under ObjectKey.
type File struct {
	ID         int    `json:"id" db:"id"`
	TaskID     int    `json:"task_id" db:"task_id"`
	UploadedBy *int   `json:"uploaded_by" db:"uploaded_by"`
	ObjectKey  string `json:"-" db:"object_key"`
	FileName   string `json:"file_name" db:"file_name"`
	MimeType   string `json:"mime_type" db:"mime_type"`
	FileSize   int64  `json:"file_size" db:"file_size"`

	UploadedByUsername *string `json:"uploaded_by_username,omitempty" db:"uploaded_by_username"`
	TaskTitle          string  `json:"task_title,omitempty" db:"task_title"`

	TaskAssigneeID *int `json:"-" db:"task_assignee_id"`
	ProjectOwnerID *int `json:"-" db:"project_owner_id"`

	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// Parties returns the uploader, the task assignee and the project owner.
func (f File) Parties() Parties {
	return Parties{
		Owners:    appendOptional(nil, f.ProjectOwnerID),
		Assignees: appendOptional(nil, f.TaskAssigneeID),
		Authors:   appendOptional(nil, f.UploadedBy),
	}
}
