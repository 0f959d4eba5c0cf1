package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/types"
)

const projectColumns = `
		p.id, p.name, p.description, p.owner_id, o.username AS owner_username,
		p.start_date, p.end_date, p.created_at, p.updated_at,
		ARRAY(
			SELECT DISTINCT st.assigned_to FROM tasks st
			WHERE st.project_id = p.id AND st.assigned_to IS NOT NULL
		) AS assignee_ids`

const projectFrom = `
		FROM projects p
		JOIN users o ON o.id = p.owner_id`

// Owner or assignee of any task in the project; a project always has an owner.
var projectVisibility = visibility{matchers: []string{
	"p.owner_id = ANY(?)",
	"EXISTS (SELECT 1 FROM tasks st WHERE st.project_id = p.id AND st.assigned_to = ANY(?))",
}}

type projectRow struct {
	types.Project
	AssigneeIDs pq.Int64Array `db:"assignee_ids"`
}

func (row projectRow) project() types.Project {
	p := row.Project
	p.AssigneeIDs = ints(row.AssigneeIDs)
	return p
}

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	base
}

func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{base: newBase(db)}
}

func (r *ProjectRepository) List(ctx context.Context, scope authz.Scope, offset, limit int) ([]types.Project, int, error) {
	var where filter
	where.scope(scope, projectVisibility)

	var total int
	countQuery := rebind("SELECT COUNT(1)" + projectFrom + " " + where.clause())
	if err := r.conn(ctx).GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, err
	}

	listQuery := rebind(fmt.Sprintf("SELECT%s%s %s ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?",
		projectColumns, projectFrom, where.clause()))
	args := append(append([]any{}, where.args...), limit, offset)
	var rows []projectRow
	if err := r.conn(ctx).SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, err
	}

	projects := make([]types.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.project())
	}
	return projects, total, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (types.Project, error) {
	var row projectRow
	query := "SELECT" + projectColumns + projectFrom + " WHERE p.id = $1"
	if err := r.conn(ctx).GetContext(ctx, &row, query, id); err != nil {
		return types.Project{}, mapError(err)
	}
	return row.project(), nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	const query = `
		INSERT INTO projects (name, description, owner_id, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.conn(ctx).QueryRowContext(
		ctx,
		query,
		project.Name,
		project.Description,
		project.OwnerID,
		project.StartDate,
		project.EndDate,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID); err != nil {
		return types.Project{}, mapError(err)
	}
	return project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now()

	const query = `
		UPDATE projects
		SET name = $1,
			description = $2,
			start_date = $3,
			end_date = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.conn(ctx).ExecContext(
		ctx,
		query,
		project.Name,
		project.Description,
		project.StartDate,
		project.EndDate,
		project.UpdatedAt,
		project.ID,
	)
	if err := expectAffected(result, err); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return expectAffected(result, err)
}
