package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

// TeamGetter loads a single team by id.
type TeamGetter interface {
	Get(ctx context.Context, id int) (types.Team, error)
}

// UserService manages roles and team membership.
type UserService struct {
	trm   TransactionManager
	users UserRepository
	teams TeamGetter
	authz Authorizer
	audit Auditor
}

func NewUserService(trm TransactionManager, users UserRepository, teams TeamGetter, authorizer Authorizer, audit Auditor) *UserService {
	return &UserService{
		trm:   trm,
		users: users,
		teams: teams,
		authz: authorizer,
		audit: auditorOrNop(audit),
	}
}

// List returns users visible to actor: everyone for admins, the members of
// managed teams plus the manager for managers.
func (s *UserService) List(ctx context.Context, actor types.User, role *types.Role, page Page) (List[types.User], error) {
	if err := s.authz.RequireRole(actor, authz.IntentRead, types.RoleAdmin, types.RoleManager); err != nil {
		return List[types.User]{}, err
	}

	f := store.UserFilter{Role: role}
	if actor.Role == types.RoleManager {
		members, err := s.authz.Resolver().TeamMembers(ctx, actor)
		if err != nil {
			return List[types.User]{}, err
		}
		f.IDs = []int{actor.ID}
		for _, m := range members {
			f.IDs = append(f.IDs, m.ID)
		}
	}

	users, total, err := s.users.List(ctx, f, page.Offset, page.Limit)
	if err != nil {
		return List[types.User]{}, err
	}
	return List[types.User]{Items: users, Total: total}, nil
}

// Get returns a user if actor is an admin, the user itself, or related to
// the user through a team.
func (s *UserService) Get(ctx context.Context, actor types.User, id int) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if actor.Role == types.RoleAdmin || actor.ID == user.ID {
		return user, nil
	}
	ok, err := s.authz.Resolver().IsTeamMember(ctx, actor, user)
	if err != nil {
		return types.User{}, err
	}
	if !ok {
		return types.User{}, s.authz.Deny(actor, authz.IntentRead)
	}
	return user, nil
}

// UpdateRole changes the role of user id. Admins may grant any role.
// Managers may switch their own team members between developer and manager.
// Promotion to manager clears the team.
func (s *UserService) UpdateRole(ctx context.Context, actor types.User, id int, rawRole string) (types.User, error) {
	role, err := types.ParseRole(rawRole)
	if err != nil {
		return types.User{}, invalid("role", err.Error())
	}
	if err := s.authz.RequireRole(actor, authz.IntentWrite, types.RoleAdmin, types.RoleManager); err != nil {
		return types.User{}, err
	}

	var previous, updated types.User
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		target, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role == types.RoleManager {
			if role == types.RoleAdmin || target.Role == types.RoleAdmin {
				return s.authz.Deny(actor, authz.IntentWrite)
			}
			ok, err := s.authz.Resolver().IsTeamMember(ctx, actor, target)
			if err != nil {
				return err
			}
			if !ok {
				return s.authz.Deny(actor, authz.IntentWrite)
			}
		}

		previous = target
		target.Role = role
		if role == types.RoleManager {
			target.TeamID = nil
			target.TeamName = nil
		}
		updated, err = s.users.Update(ctx, target)
		return err
	})
	if err != nil {
		return types.User{}, err
	}

	s.audit.Record(ctx, actor, auditEntry(types.AuditUpdate, "user", updated.ID, updated.Username, map[string]any{
		"role": []string{string(previous.Role), string(updated.Role)},
	}))
	return updated, nil
}

// AssignTeam moves user id into team teamID, or out of any team when teamID
// is nil. Only admins may do this and managers cannot join a team.
func (s *UserService) AssignTeam(ctx context.Context, actor types.User, id int, teamID *int) (types.User, error) {
	if err := s.authz.RequireRole(actor, authz.IntentWrite, types.RoleAdmin); err != nil {
		return types.User{}, err
	}

	var updated types.User
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		target, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}

		target.TeamName = nil
		if teamID != nil {
			if target.Role == types.RoleManager {
				return invalid("team_id", "managers cannot be members of a team")
			}
			team, err := s.teams.Get(ctx, *teamID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("team %d: %w", *teamID, store.ErrNotFound)
				}
				return err
			}
			target.TeamName = &team.Name
		}
		target.TeamID = teamID

		updated, err = s.users.Update(ctx, target)
		return err
	})
	if err != nil {
		return types.User{}, err
	}

	s.audit.Record(ctx, actor, auditEntry(types.AuditUpdate, "user", updated.ID, updated.Username, map[string]any{
		"team_id": teamID,
	}))
	return updated, nil
}

// ClearManagerTeams removes the team of every manager that still has one.
// When username is set only that user is considered. It returns the
// managers that were changed.
func (s *UserService) ClearManagerTeams(ctx context.Context, username string) ([]types.User, error) {
	var fixed []types.User
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		var managers []types.User
		if username != "" {
			user, err := s.users.GetByUsername(ctx, username)
			if err != nil {
				return err
			}
			if user.Role != types.RoleManager {
				return invalid("username", "user is not a manager")
			}
			managers = []types.User{user}
		} else {
			var err error
			if managers, err = s.users.ListByRole(ctx, types.RoleManager); err != nil {
				return err
			}
		}

		for _, manager := range managers {
			if manager.TeamID == nil {
				continue
			}
			manager.TeamID = nil
			manager.TeamName = nil
			updated, err := s.users.Update(ctx, manager)
			if err != nil {
				return err
			}
			fixed = append(fixed, updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fixed, nil
}
