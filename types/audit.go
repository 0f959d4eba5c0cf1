package types

import (
	"encoding/json"
	"time"
)

// AuditAction is the kind of mutation recorded in the audit log.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// AuditLog is an append-only record of a mutation performed by a user.
type AuditLog struct {
	ID int `json:"id" db:"id"`

	// UserID references the actor. It is null for anonymous flows.
	UserID *int `json:"user_id" db:"user_id"`

	Action     AuditAction `json:"action" db:"action"`
	ObjectType string      `json:"object_type" db:"object_type"`
	ObjectID   int         `json:"object_id" db:"object_id"`
	ObjectRepr string      `json:"object_repr" db:"object_repr"`

	// Changes holds a JSON object describing updated fields.
	Changes json.RawMessage `json:"changes" db:"changes"`

	IPAddress *string `json:"ip_address" db:"ip_address"`
	UserAgent string  `json:"user_agent" db:"user_agent"`

	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
