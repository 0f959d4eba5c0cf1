package authz

import (
	"context"
	"errors"

	"github.com/taskdash/apiserver/types"
)

// ErrPermissionDenied is returned whenever the evaluator denies access.
var ErrPermissionDenied = errors.New("permission denied")

// Intent distinguishes read from write access. Both currently follow the
// same rules.
type Intent string

const (
	IntentRead  Intent = "read"
	IntentWrite Intent = "write"
)

// Record is anything the evaluator can reason about.
type Record interface {
	Parties() types.Parties
}

// Policy holds the tunable parts of the evaluator.
type Policy struct {
	// ManagerSeesUnassigned grants managers access to records that have
	// no parties at all. The zero value denies them, so unassigned tasks
	// and time logs stay hidden from managers unless this is set
	// (AUTHZ_MANAGER_SEES_UNASSIGNED=true restores allow-by-default).
	ManagerSeesUnassigned bool
}

// DenyObserver is notified about every denial.
type DenyObserver func(actor types.User, intent Intent)

// Evaluator centralizes every role-based access decision.
type Evaluator struct {
	resolver *Resolver
	dir      Directory
	policy   Policy
	observe  DenyObserver
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithDenyObserver registers a callback invoked on each denial.
func WithDenyObserver(fn DenyObserver) Option {
	return func(e *Evaluator) {
		e.observe = fn
	}
}

// NewEvaluator constructs an Evaluator reading relationships from dir.
func NewEvaluator(dir Directory, policy Policy, opts ...Option) *Evaluator {
	e := &Evaluator{
		resolver: NewResolver(dir),
		dir:      dir,
		policy:   policy,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolver exposes the team-membership resolver backing the evaluator.
func (e *Evaluator) Resolver() *Resolver {
	return e.resolver
}

// Policy returns the active policy.
func (e *Evaluator) Policy() Policy {
	return e.policy
}

// Authorize returns nil when actor may access record with the given
// intent and ErrPermissionDenied otherwise.
func (e *Evaluator) Authorize(ctx context.Context, actor types.User, record Record, intent Intent) error {
	allowed, err := e.allowed(ctx, actor, record.Parties())
	if err != nil {
		return err
	}
	if !allowed {
		return e.Deny(actor, intent)
	}
	return nil
}

func (e *Evaluator) allowed(ctx context.Context, actor types.User, parties types.Parties) (bool, error) {
	switch actor.Role {
	case types.RoleAdmin:
		return true, nil
	case types.RoleManager:
		if parties.Has(actor.ID) {
			return true, nil
		}
		if parties.Empty() {
			return e.policy.ManagerSeesUnassigned, nil
		}
		users, err := e.dir.ListUsersByIDs(ctx, parties.IDs())
		if err != nil {
			return false, err
		}
		// Same test as IsTeamMember, with the managed teams loaded once.
		teams, err := e.resolver.ManagedTeams(ctx, actor)
		if err != nil {
			return false, err
		}
		managed := teamSet(teams)
		for _, user := range users {
			if managed.contains(user) {
				return true, nil
			}
		}
		return false, nil
	case types.RoleDeveloper:
		return parties.Has(actor.ID), nil
	default:
		return false, nil
	}
}

// CanAssign checks whether actor may make assignee responsible for a task.
// It must run before the task is persisted.
func (e *Evaluator) CanAssign(ctx context.Context, actor, assignee types.User) error {
	switch actor.Role {
	case types.RoleAdmin:
		return nil
	case types.RoleManager:
		ok, err := e.resolver.IsTeamMember(ctx, actor, assignee)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	case types.RoleDeveloper:
		if assignee.ID == actor.ID || actor.SameTeam(assignee) {
			return nil
		}
	}
	return e.Deny(actor, IntentWrite)
}

// RequireRole denies unless actor holds one of roles.
func (e *Evaluator) RequireRole(actor types.User, intent Intent, roles ...types.Role) error {
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return e.Deny(actor, intent)
}

// Deny reports a denial to the observer and returns ErrPermissionDenied.
func (e *Evaluator) Deny(actor types.User, intent Intent) error {
	if e.observe != nil {
		e.observe(actor, intent)
	}
	return ErrPermissionDenied
}
