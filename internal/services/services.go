// Package services implements the use cases of the API. Every operation
// takes the authenticated actor explicitly and delegates access decisions to
// the authorization evaluator.
package services

import (
	"context"
	"errors"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

// TransactionManager runs fn inside a database transaction carried by ctx.
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Authorizer is the subset of the authorization evaluator used by services.
type Authorizer interface {
	Authorize(ctx context.Context, actor types.User, record authz.Record, intent authz.Intent) error
	CanAssign(ctx context.Context, actor, assignee types.User) error
	Scope(ctx context.Context, actor types.User) (authz.Scope, error)
	RequireRole(actor types.User, intent authz.Intent, roles ...types.Role) error
	Deny(actor types.User, intent authz.Intent) error
	Resolver() *authz.Resolver
}

// Page is a window into a list result.
type Page struct {
	Offset int
	Limit  int
}

// List is a page of items plus the total number of matches.
type List[T any] struct {
	Items []T
	Total int
}

type requestMetaKey struct{}

// RequestMeta describes the client of the current request. It is recorded
// in audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// WithRequestMeta attaches request metadata to ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// UserGetter loads a single user by id.
type UserGetter interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// lookupUser loads a referenced user, turning a missing row into a
// ValidationError on field.
func lookupUser(ctx context.Context, users UserGetter, field string, id int) (types.User, error) {
	user, err := users.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, invalid(field, "user does not exist")
	}
	return user, err
}
