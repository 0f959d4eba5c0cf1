package services

import (
	"context"
	"strings"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/types"
)

// TeamRepository defines persistence operations for teams.
type TeamRepository interface {
	Get(ctx context.Context, id int) (types.Team, error)
	List(ctx context.Context, offset, limit int) ([]types.Team, int, error)
	Create(ctx context.Context, team types.Team) (types.Team, error)
}

// TeamMemberLister lists the members of a set of teams.
type TeamMemberLister interface {
	ListUsersByTeams(ctx context.Context, teamIDs []int) ([]types.User, error)
}

// ManagedTeams is the manager's view of their teams.
type ManagedTeams struct {
	Teams   []types.Team `json:"teams"`
	Members []types.User `json:"members"`
}

// TeamService manages teams.
type TeamService struct {
	teams   TeamRepository
	users   UserGetter
	members TeamMemberLister
	authz   Authorizer
	audit   Auditor
}

func NewTeamService(teams TeamRepository, users UserGetter, members TeamMemberLister, authorizer Authorizer, audit Auditor) *TeamService {
	return &TeamService{
		teams:   teams,
		users:   users,
		members: members,
		authz:   authorizer,
		audit:   auditorOrNop(audit),
	}
}

func (s *TeamService) List(ctx context.Context, actor types.User, page Page) (List[types.Team], error) {
	if err := s.authz.RequireRole(actor, authz.IntentRead, types.RoleAdmin); err != nil {
		return List[types.Team]{}, err
	}
	teams, total, err := s.teams.List(ctx, page.Offset, page.Limit)
	if err != nil {
		return List[types.Team]{}, err
	}
	return List[types.Team]{Items: teams, Total: total}, nil
}

// Create adds a team managed by managerID, who must hold the manager role.
func (s *TeamService) Create(ctx context.Context, actor types.User, name string, managerID int) (types.Team, error) {
	if err := s.authz.RequireRole(actor, authz.IntentWrite, types.RoleAdmin); err != nil {
		return types.Team{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Team{}, invalid("name", "is required")
	}

	manager, err := lookupUser(ctx, s.users, "manager_id", managerID)
	if err != nil {
		return types.Team{}, err
	}
	if manager.Role != types.RoleManager {
		return types.Team{}, invalid("manager_id", "user is not a manager")
	}

	team, err := s.teams.Create(ctx, types.Team{Name: name, ManagerID: manager.ID})
	if err != nil {
		return types.Team{}, err
	}
	team.ManagerName = manager.Username

	s.audit.Record(ctx, actor, auditEntry(types.AuditCreate, "team", team.ID, team.Name, map[string]any{
		"manager_id": manager.ID,
	}))
	return team, nil
}

// Managed returns the teams managed by actor together with their members.
func (s *TeamService) Managed(ctx context.Context, actor types.User) (ManagedTeams, error) {
	if err := s.authz.RequireRole(actor, authz.IntentRead, types.RoleManager); err != nil {
		return ManagedTeams{}, err
	}

	resolver := s.authz.Resolver()
	teams, err := resolver.ManagedTeams(ctx, actor)
	if err != nil {
		return ManagedTeams{}, err
	}
	members, err := resolver.TeamMembers(ctx, actor)
	if err != nil {
		return ManagedTeams{}, err
	}
	return ManagedTeams{
		Teams:   nonNil(teams),
		Members: nonNil(members),
	}, nil
}

// Members lists the users of team id. Admins see any team, managers only
// the teams they manage.
func (s *TeamService) Members(ctx context.Context, actor types.User, id int) ([]types.User, error) {
	team, err := s.teams.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != types.RoleAdmin && !(actor.Role == types.RoleManager && team.ManagerID == actor.ID) {
		return nil, s.authz.Deny(actor, authz.IntentRead)
	}

	members, err := s.members.ListUsersByTeams(ctx, []int{team.ID})
	if err != nil {
		return nil, err
	}
	return nonNil(members), nil
}

func (s *TeamService) Get(ctx context.Context, id int) (types.Team, error) {
	return s.teams.Get(ctx, id)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
