package authz

import (
	"context"

	"github.com/taskdash/apiserver/types"
)

// Scope is the list-query form of Authorize. Repositories translate it into
// a WHERE clause over the record's party columns; Permits is the same
// predicate evaluated in memory.
type Scope struct {
	// All disables filtering.
	All bool
	// UserIDs lists the users whose records are visible.
	UserIDs []int
	// IncludeUnassigned admits records without any party.
	IncludeUnassigned bool
}

// Permits reports whether a record with the given parties falls inside s.
func (s Scope) Permits(parties types.Parties) bool {
	if s.All {
		return true
	}
	if parties.Empty() {
		return s.IncludeUnassigned
	}
	for _, id := range parties.IDs() {
		for _, visible := range s.UserIDs {
			if id == visible {
				return true
			}
		}
	}
	return false
}

// Scope computes the visibility scope for list endpoints. For every record
// r, Scope(actor).Permits(r.Parties()) agrees with Authorize(actor, r).
func (e *Evaluator) Scope(ctx context.Context, actor types.User) (Scope, error) {
	switch actor.Role {
	case types.RoleAdmin:
		return Scope{All: true}, nil
	case types.RoleManager:
		members, err := e.resolver.TeamMembers(ctx, actor)
		if err != nil {
			return Scope{}, err
		}
		ids := append([]int{actor.ID}, userIDs(members)...)
		return Scope{
			UserIDs:           ids,
			IncludeUnassigned: e.policy.ManagerSeesUnassigned,
		}, nil
	case types.RoleDeveloper:
		return Scope{UserIDs: []int{actor.ID}}, nil
	default:
		return Scope{}, e.Deny(actor, IntentRead)
	}
}
