package store

import (
	"context"
	"strings"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskdash/apiserver/internal/authz"
)

// base gives every repository access to the ambient transaction, if any.
type base struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func newBase(db *sqlx.DB) base {
	return base{db: db, getter: trmsqlx.DefaultCtxGetter}
}

func (b base) conn(ctx context.Context) trmsqlx.Tr {
	return b.getter.DefaultTrOrDB(ctx, b.db)
}

// filter accumulates WHERE conditions written with '?' placeholders; the
// final query is rebound to Postgres '$n' syntax.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) where(cond string, args ...any) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

// visibility is the SQL form of a record's Parties. Each matcher is a
// condition with a single '?' bound to the visible user ids and covers one
// party column. unassigned identifies records without parties, or is ""
// when the record always has one.
type visibility struct {
	matchers   []string
	unassigned string
}

// scope restricts the query to records visible under s.
func (f *filter) scope(s authz.Scope, v visibility) {
	if s.All {
		return
	}
	ids := pq.Array(int64s(s.UserIDs))
	parts := make([]string, 0, len(v.matchers)+1)
	args := make([]any, 0, len(v.matchers))
	for _, m := range v.matchers {
		parts = append(parts, m)
		args = append(args, ids)
	}
	if s.IncludeUnassigned && v.unassigned != "" {
		parts = append(parts, "("+v.unassigned+")")
	}
	if len(parts) == 0 {
		f.where("FALSE")
		return
	}
	f.where("("+strings.Join(parts, " OR ")+")", args...)
}

func (f *filter) clause() string {
	if len(f.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(f.conds, " AND ")
}

func rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

func int64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func ints(ids pq.Int64Array) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
