package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/types"
)

const taskColumns = `
		t.id, t.title, t.description, t.project_id, t.assigned_to,
		a.username AS assigned_to_username, t.status, t.due_date,
		t.created_at, t.updated_at`

const taskFrom = `
		FROM tasks t
		LEFT JOIN users a ON a.id = t.assigned_to`

var taskVisibility = visibility{
	matchers:   []string{"t.assigned_to = ANY(?)"},
	unassigned: "t.assigned_to IS NULL",
}

// TaskFilter narrows List results.
type TaskFilter struct {
	ProjectID *int
	Status    *types.TaskStatus
}

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	base
}

func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{base: newBase(db)}
}

func (r *TaskRepository) List(ctx context.Context, scope authz.Scope, f TaskFilter, offset, limit int) ([]types.Task, int, error) {
	var where filter
	where.scope(scope, taskVisibility)
	if f.ProjectID != nil {
		where.where("t.project_id = ?", *f.ProjectID)
	}
	if f.Status != nil {
		where.where("t.status = ?", string(*f.Status))
	}

	var total int
	countQuery := rebind("SELECT COUNT(1)" + taskFrom + " " + where.clause())
	if err := r.conn(ctx).GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, err
	}

	listQuery := rebind(fmt.Sprintf("SELECT%s%s %s ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?",
		taskColumns, taskFrom, where.clause()))
	args := append(append([]any{}, where.args...), limit, offset)
	tasks := make([]types.Task, 0, limit)
	if err := r.conn(ctx).SelectContext(ctx, &tasks, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListByProject returns every task of a project, newest first.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int) ([]types.Task, error) {
	query := "SELECT" + taskColumns + taskFrom + " WHERE t.project_id = $1 ORDER BY t.created_at DESC, t.id DESC"
	var tasks []types.Task
	if err := r.conn(ctx).SelectContext(ctx, &tasks, query, projectID); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, id int) (types.Task, error) {
	var task types.Task
	query := "SELECT" + taskColumns + taskFrom + " WHERE t.id = $1"
	if err := r.conn(ctx).GetContext(ctx, &task, query, id); err != nil {
		return types.Task{}, mapError(err)
	}
	return task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (title, description, project_id, assigned_to, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.conn(ctx).QueryRowContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.ProjectID,
		task.AssignedTo,
		string(task.Status),
		task.DueDate,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, mapError(err)
	}
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	task.UpdatedAt = time.Now()

	const query = `
		UPDATE tasks
		SET title = $1,
			description = $2,
			project_id = $3,
			assigned_to = $4,
			status = $5,
			due_date = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.conn(ctx).ExecContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.ProjectID,
		task.AssignedTo,
		string(task.Status),
		task.DueDate,
		task.UpdatedAt,
		task.ID,
	)
	if err := expectAffected(result, err); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return expectAffected(result, err)
}
