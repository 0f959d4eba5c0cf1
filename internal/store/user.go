package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskdash/apiserver/types"
)

const userColumns = `
		u.id, u.username, u.email, u.name, u.role, u.team_id, t.name AS team_name,
		u.is_active, u.password_hash, u.created_at, u.updated_at`

const userFrom = `
		FROM users u
		LEFT JOIN teams t ON t.id = u.team_id`

// UserFilter narrows List results.
type UserFilter struct {
	Role *types.Role
	// IDs restricts the result to the given users when non-nil.
	IDs []int
}

// UserRepository handles persistence for users.
type UserRepository struct {
	base
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{base: newBase(db)}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	return r.getOne(ctx, "u.id = $1", id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.getOne(ctx, "u.username = $1", username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.getOne(ctx, "LOWER(u.email) = LOWER($1)", email)
}

func (r *UserRepository) getOne(ctx context.Context, cond string, arg any) (types.User, error) {
	query := "SELECT" + userColumns + userFrom + " WHERE " + cond
	var user types.User
	if err := r.conn(ctx).GetContext(ctx, &user, query, arg); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, f UserFilter, offset, limit int) ([]types.User, int, error) {
	var where filter
	if f.Role != nil {
		where.where("u.role = ?", string(*f.Role))
	}
	if f.IDs != nil {
		where.where("u.id = ANY(?)", pq.Array(int64s(f.IDs)))
	}

	countQuery := rebind("SELECT COUNT(1)" + userFrom + " " + where.clause())
	var total int
	if err := r.conn(ctx).GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, err
	}

	listQuery := rebind(fmt.Sprintf("SELECT%s%s %s ORDER BY u.id LIMIT ? OFFSET ?", userColumns, userFrom, where.clause()))
	args := append(append([]any{}, where.args...), limit, offset)
	users := make([]types.User, 0, limit)
	if err := r.conn(ctx).SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListByRole returns every user holding role, ordered by id.
func (r *UserRepository) ListByRole(ctx context.Context, role types.Role) ([]types.User, error) {
	query := "SELECT" + userColumns + userFrom + " WHERE u.role = $1 ORDER BY u.id"
	var users []types.User
	if err := r.conn(ctx).SelectContext(ctx, &users, query, string(role)); err != nil {
		return nil, err
	}
	return users, nil
}

// ListUsersByTeams returns every user whose team is one of teamIDs.
func (r *UserRepository) ListUsersByTeams(ctx context.Context, teamIDs []int) ([]types.User, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	query := "SELECT" + userColumns + userFrom + " WHERE u.team_id = ANY($1) ORDER BY u.id"
	var users []types.User
	if err := r.conn(ctx).SelectContext(ctx, &users, query, pq.Array(int64s(teamIDs))); err != nil {
		return nil, err
	}
	return users, nil
}

// ListUsersByIDs returns the users with the given ids; unknown ids are skipped.
func (r *UserRepository) ListUsersByIDs(ctx context.Context, ids []int) ([]types.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT" + userColumns + userFrom + " WHERE u.id = ANY($1) ORDER BY u.id"
	var users []types.User
	if err := r.conn(ctx).SelectContext(ctx, &users, query, pq.Array(int64s(ids))); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (username, email, name, role, team_id, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.conn(ctx).QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.Name,
		string(user.Role),
		user.TeamID,
		user.IsActive,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET username = $1,
			email = $2,
			name = $3,
			role = $4,
			team_id = $5,
			is_active = $6,
			password_hash = $7,
			updated_at = $8
		WHERE id = $9`
	result, err := r.conn(ctx).ExecContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.Name,
		string(user.Role),
		user.TeamID,
		user.IsActive,
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
	if err := expectAffected(result, err); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// UpdatePassword replaces the stored password hash of a single user.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	result, err := r.conn(ctx).ExecContext(ctx, query, passwordHash, time.Now(), id)
	return expectAffected(result, err)
}
