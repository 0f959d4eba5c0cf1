package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/types"
)

const timeLogColumns = `
		l.id, l.task_id, l.user_id, l.hours, l.description, l.created_at,
		u.username AS user_username, t.title AS task_title`

const timeLogFrom = `
		FROM time_logs l
		JOIN tasks t ON t.id = l.task_id
		LEFT JOIN users u ON u.id = l.user_id`

var timeLogVisibility = visibility{
	matchers:   []string{"l.user_id = ANY(?)"},
	unassigned: "l.user_id IS NULL",
}

// TimeLogRepository handles persistence for time logs.
type TimeLogRepository struct {
	base
}

func NewTimeLogRepository(db *sqlx.DB) *TimeLogRepository {
	return &TimeLogRepository{base: newBase(db)}
}

func (r *TimeLogRepository) List(ctx context.Context, scope authz.Scope, taskID *int, offset, limit int) ([]types.TimeLog, int, error) {
	var where filter
	where.scope(scope, timeLogVisibility)
	if taskID != nil {
		where.where("l.task_id = ?", *taskID)
	}

	var total int
	countQuery := rebind("SELECT COUNT(1)" + timeLogFrom + " " + where.clause())
	if err := r.conn(ctx).GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, err
	}

	listQuery := rebind(fmt.Sprintf("SELECT%s%s %s ORDER BY l.created_at DESC, l.id DESC LIMIT ? OFFSET ?",
		timeLogColumns, timeLogFrom, where.clause()))
	args := append(append([]any{}, where.args...), limit, offset)
	logs := make([]types.TimeLog, 0, limit)
	if err := r.conn(ctx).SelectContext(ctx, &logs, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *TimeLogRepository) Get(ctx context.Context, id int) (types.TimeLog, error) {
	var log types.TimeLog
	query := "SELECT" + timeLogColumns + timeLogFrom + " WHERE l.id = $1"
	if err := r.conn(ctx).GetContext(ctx, &log, query, id); err != nil {
		return types.TimeLog{}, mapError(err)
	}
	return log, nil
}

// Create inserts a time log. A second log by the same user for the same
// task fails with ErrConflict.
func (r *TimeLogRepository) Create(ctx context.Context, log types.TimeLog) (types.TimeLog, error) {
	const query = `
		INSERT INTO time_logs (task_id, user_id, hours, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int
	if err := r.conn(ctx).QueryRowContext(ctx, query, log.TaskID, log.UserID, log.Hours, log.Description, time.Now()).
		Scan(&id); err != nil {
		return types.TimeLog{}, mapError(err)
	}
	return r.Get(ctx, id)
}

func (r *TimeLogRepository) Update(ctx context.Context, log types.TimeLog) error {
	const query = `UPDATE time_logs SET hours = $1, description = $2 WHERE id = $3`
	result, err := r.conn(ctx).ExecContext(ctx, query, log.Hours, log.Description, log.ID)
	return expectAffected(result, err)
}

func (r *TimeLogRepository) Delete(ctx context.Context, id int) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM time_logs WHERE id = $1`, id)
	return expectAffected(result, err)
}
