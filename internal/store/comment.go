package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/types"
)

const commentColumns = `
		c.id, c.task_id, c.user_id, c.content, c.created_at,
		u.username AS user_username, t.title AS task_title,
		t.assigned_to AS task_assignee_id, p.owner_id AS project_owner_id`

const commentFrom = `
		FROM comments c
		JOIN tasks t ON t.id = c.task_id
		JOIN projects p ON p.id = t.project_id
		LEFT JOIN users u ON u.id = c.user_id`

var commentVisibility = visibility{matchers: []string{
	"c.user_id = ANY(?)",
	"t.assigned_to = ANY(?)",
	"p.owner_id = ANY(?)",
}}

// CommentRepository handles persistence for task comments.
type CommentRepository struct {
	base
}

func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{base: newBase(db)}
}

func (r *CommentRepository) List(ctx context.Context, scope authz.Scope, taskID *int, offset, limit int) ([]types.Comment, int, error) {
	var where filter
	where.scope(scope, commentVisibility)
	if taskID != nil {
		where.where("c.task_id = ?", *taskID)
	}

	var total int
	countQuery := rebind("SELECT COUNT(1)" + commentFrom + " " + where.clause())
	if err := r.conn(ctx).GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, err
	}

	listQuery := rebind(fmt.Sprintf("SELECT%s%s %s ORDER BY c.created_at DESC, c.id DESC LIMIT ? OFFSET ?",
		commentColumns, commentFrom, where.clause()))
	args := append(append([]any{}, where.args...), limit, offset)
	comments := make([]types.Comment, 0, limit)
	if err := r.conn(ctx).SelectContext(ctx, &comments, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *CommentRepository) Get(ctx context.Context, id int) (types.Comment, error) {
	var comment types.Comment
	query := "SELECT" + commentColumns + commentFrom + " WHERE c.id = $1"
	if err := r.conn(ctx).GetContext(ctx, &comment, query, id); err != nil {
		return types.Comment{}, mapError(err)
	}
	return comment, nil
}

// Create inserts the comment and returns it re-read with its joined fields.
func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	const query = `
		INSERT INTO comments (task_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id int
	if err := r.conn(ctx).QueryRowContext(ctx, query, comment.TaskID, comment.UserID, comment.Content, time.Now()).
		Scan(&id); err != nil {
		return types.Comment{}, mapError(err)
	}
	return r.Get(ctx, id)
}

func (r *CommentRepository) Update(ctx context.Context, id int, content string) error {
	result, err := r.conn(ctx).ExecContext(ctx, `UPDATE comments SET content = $1 WHERE id = $2`, content, id)
	return expectAffected(result, err)
}

func (r *CommentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return expectAffected(result, err)
}
