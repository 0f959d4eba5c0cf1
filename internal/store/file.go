package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/types"
)

const fileColumns = `
		f.id, f.task_id, f.uploaded_by, f.object_key, f.file_name, f.mime_type,
		f.file_size, f.uploaded_at, u.username AS uploaded_by_username,
		t.title AS task_title, t.assigned_to AS task_assignee_id,
		p.owner_id AS project_owner_id`

const fileFrom = `
		FROM files f
		JOIN tasks t ON t.id = f.task_id
		JOIN projects p ON p.id = t.project_id
		LEFT JOIN users u ON u.id = f.uploaded_by`

var fileVisibility = visibility{matchers: []string{
	"f.uploaded_by = ANY(?)",
	"t.assigned_to = ANY(?)",
	"p.owner_id = ANY(?)",
}}

// FileRepository stores metadata of task attachments. Content is kept in
// object storage.
type FileRepository struct {
	base
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{base: newBase(db)}
}

func (r *FileRepository) List(ctx context.Context, scope authz.Scope, taskID *int, offset, limit int) ([]types.File, int, error) {
	var where filter
	where.scope(scope, fileVisibility)
	if taskID != nil {
		where.where("f.task_id = ?", *taskID)
	}

	var total int
	countQuery := rebind("SELECT COUNT(1)" + fileFrom + " " + where.clause())
	if err := r.conn(ctx).GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, err
	}

	listQuery := rebind(fmt.Sprintf("SELECT%s%s %s ORDER BY f.uploaded_at DESC, f.id DESC LIMIT ? OFFSET ?",
		fileColumns, fileFrom, where.clause()))
	args := append(append([]any{}, where.args...), limit, offset)
	files := make([]types.File, 0, limit)
	if err := r.conn(ctx).SelectContext(ctx, &files, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

func (r *FileRepository) Get(ctx context.Context, id int) (types.File, error) {
	var file types.File
	query := "SELECT" + fileColumns + fileFrom + " WHERE f.id = $1"
	if err := r.conn(ctx).GetContext(ctx, &file, query, id); err != nil {
		return types.File{}, mapError(err)
	}
	return file, nil
}

func (r *FileRepository) Create(ctx context.Context, file types.File) (types.File, error) {
	const query = `
		INSERT INTO files (task_id, uploaded_by, object_key, file_name, mime_type, file_size, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	var id int
	if err := r.conn(ctx).QueryRowContext(
		ctx,
		query,
		file.TaskID,
		file.UploadedBy,
		file.ObjectKey,
		file.FileName,
		file.MimeType,
		file.FileSize,
		time.Now(),
	).Scan(&id); err != nil {
		return types.File{}, mapError(err)
	}
	return r.Get(ctx, id)
}

func (r *FileRepository) Delete(ctx context.Context, id int) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	return expectAffected(result, err)
}
