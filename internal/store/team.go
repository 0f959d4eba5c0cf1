package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskdash/apiserver/types"
)

const teamSelect = `
		SELECT tm.id, tm.name, tm.manager_id, m.username AS manager_name,
		       (SELECT COUNT(1) FROM users u WHERE u.team_id = tm.id) AS member_count,
		       tm.created_at, tm.updated_at
		FROM teams tm
		JOIN users m ON m.id = tm.manager_id`

// TeamRepository handles persistence for teams.
type TeamRepository struct {
	base
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{base: newBase(db)}
}

func (r *TeamRepository) Get(ctx context.Context, id int) (types.Team, error) {
	var team types.Team
	if err := r.conn(ctx).GetContext(ctx, &team, teamSelect+" WHERE tm.id = $1", id); err != nil {
		return types.Team{}, mapError(err)
	}
	return team, nil
}

func (r *TeamRepository) List(ctx context.Context, offset, limit int) ([]types.Team, int, error) {
	var total int
	if err := r.conn(ctx).GetContext(ctx, &total, `SELECT COUNT(1) FROM teams`); err != nil {
		return nil, 0, err
	}

	teams := make([]types.Team, 0, limit)
	query := teamSelect + " ORDER BY tm.id LIMIT $1 OFFSET $2"
	if err := r.conn(ctx).SelectContext(ctx, &teams, query, limit, offset); err != nil {
		return nil, 0, err
	}
	return teams, total, nil
}

// ListTeamsByManager returns every team managed by managerID.
func (r *TeamRepository) ListTeamsByManager(ctx context.Context, managerID int) ([]types.Team, error) {
	var teams []types.Team
	query := teamSelect + " WHERE tm.manager_id = $1 ORDER BY tm.id"
	if err := r.conn(ctx).SelectContext(ctx, &teams, query, managerID); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *TeamRepository) Create(ctx context.Context, team types.Team) (types.Team, error) {
	now := time.Now()
	team.CreatedAt = now
	team.UpdatedAt = now

	const query = `
		INSERT INTO teams (name, manager_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.conn(ctx).QueryRowContext(ctx, query, team.Name, team.ManagerID, team.CreatedAt, team.UpdatedAt).
		Scan(&team.ID); err != nil {
		return types.Team{}, mapError(err)
	}
	return team, nil
}

// Directory joins the user and team repositories into the read model used
// by the authorization evaluator.
type Directory struct {
	*UserRepository
	*TeamRepository
}

func NewDirectory(users *UserRepository, teams *TeamRepository) Directory {
	return Directory{UserRepository: users, TeamRepository: teams}
}
