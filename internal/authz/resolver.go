// Package authz decides who may see and modify which records.
//
// Decisions are derived from the actor's role and the manager -> team ->
// member relationships held by a Directory. Nothing is cached; a team or
// manager reassignment is visible to the very next decision.
package authz

import (
	"context"

	"github.com/taskdash/apiserver/types"
)

// Directory is the read side of the identity store used by the resolver.
type Directory interface {
	// ListTeamsByManager returns every team whose manager is managerID.
	ListTeamsByManager(ctx context.Context, managerID int) ([]types.Team, error)
	// ListUsersByTeams returns every user whose team is one of teamIDs.
	ListUsersByTeams(ctx context.Context, teamIDs []int) ([]types.User, error)
	// ListUsersByIDs returns the users with the given ids. Unknown ids are
	// omitted rather than reported as errors.
	ListUsersByIDs(ctx context.Context, ids []int) ([]types.User, error)
}

// Resolver computes team relationships on demand.
type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// ManagedTeams returns the teams managed by user. Non-managers and managers
// without teams get an empty result.
func (r *Resolver) ManagedTeams(ctx context.Context, user types.User) ([]types.Team, error) {
	if user.Role != types.RoleManager {
		return nil, nil
	}
	return r.dir.ListTeamsByManager(ctx, user.ID)
}

// TeamMembers returns the users under a manager's teams, or for anyone
// else the users sharing their team, themselves included.
func (r *Resolver) TeamMembers(ctx context.Context, user types.User) ([]types.User, error) {
	if user.Role == types.RoleManager {
		teams, err := r.ManagedTeams(ctx, user)
		if err != nil {
			return nil, err
		}
		if len(teams) == 0 {
			return nil, nil
		}
		return r.dir.ListUsersByTeams(ctx, teamIDs(teams))
	}
	if user.TeamID == nil {
		return nil, nil
	}
	return r.dir.ListUsersByTeams(ctx, []int{*user.TeamID})
}

// IsTeamMember reports whether other falls under actor's team. For a
// manager that means other belongs to one of the manager's teams; for
// everyone else both users share the same non-null team. The check is
// directional: IsTeamMember(a, b) may differ from IsTeamMember(b, a).
func (r *Resolver) IsTeamMember(ctx context.Context, actor, other types.User) (bool, error) {
	if actor.Role != types.RoleManager {
		return actor.SameTeam(other), nil
	}
	if other.TeamID == nil {
		return false, nil
	}
	teams, err := r.ManagedTeams(ctx, actor)
	if err != nil {
		return false, err
	}
	return teamSet(teams).contains(other), nil
}

type managedSet map[int]struct{}

func teamSet(teams []types.Team) managedSet {
	set := make(managedSet, len(teams))
	for _, team := range teams {
		set[team.ID] = struct{}{}
	}
	return set
}

func (s managedSet) contains(user types.User) bool {
	if user.TeamID == nil {
		return false
	}
	_, ok := s[*user.TeamID]
	return ok
}

func teamIDs(teams []types.Team) []int {
	ids := make([]int, 0, len(teams))
	for _, team := range teams {
		ids = append(ids, team.ID)
	}
	return ids
}

func userIDs(users []types.User) []int {
	ids := make([]int, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids
}
