package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskdash/apiserver/types"
)

// AuditRepository appends and reads audit log entries.
type AuditRepository struct {
	base
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{base: newBase(db)}
}

func (r *AuditRepository) Create(ctx context.Context, entry types.AuditLog) (types.AuditLog, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	changes := entry.Changes
	if len(changes) == 0 {
		changes = []byte("{}")
	}

	const query = `
		INSERT INTO audit_logs (user_id, action, object_type, object_id, object_repr, changes, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.conn(ctx).QueryRowContext(
		ctx,
		query,
		entry.UserID,
		string(entry.Action),
		entry.ObjectType,
		entry.ObjectID,
		entry.ObjectRepr,
		string(changes),
		entry.IPAddress,
		entry.UserAgent,
		entry.Timestamp,
	).Scan(&entry.ID); err != nil {
		return types.AuditLog{}, mapError(err)
	}
	entry.Changes = changes
	return entry, nil
}

func (r *AuditRepository) List(ctx context.Context, offset, limit int) ([]types.AuditLog, int, error) {
	var total int
	if err := r.conn(ctx).GetContext(ctx, &total, `SELECT COUNT(1) FROM audit_logs`); err != nil {
		return nil, 0, err
	}

	const query = `
		SELECT id, user_id, action, object_type, object_id, object_repr, changes,
		       HOST(ip_address) AS ip_address, user_agent, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT $1 OFFSET $2`
	entries := make([]types.AuditLog, 0, limit)
	if err := r.conn(ctx).SelectContext(ctx, &entries, query, limit, offset); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
