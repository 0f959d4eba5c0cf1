package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/types"
)

type memoryAudit struct {
	entries []types.AuditLog
	err     error
}

func (m *memoryAudit) Create(_ context.Context, entry types.AuditLog) (types.AuditLog, error) {
	if m.err != nil {
		return types.AuditLog{}, m.err
	}
	entry.ID = len(m.entries) + 1
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memoryAudit) List(_ context.Context, offset, limit int) ([]types.AuditLog, int, error) {
	if offset >= len(m.entries) {
		return nil, len(m.entries), nil
	}
	end := min(offset+limit, len(m.entries))
	return m.entries[offset:end], len(m.entries), nil
}

func newAuditService(repo *memoryAudit) *AuditService {
	evaluator := authz.NewEvaluator(newDirectory(), authz.Policy{})
	return NewAuditService(repo, evaluator, logger.Discard())
}

func TestAuditRecordStampsRequest(t *testing.T) {
	repo := &memoryAudit{}
	svc := newAuditService(repo)

	ctx := WithRequestMeta(context.Background(), RequestMeta{IP: "10.0.0.7", UserAgent: "curl/8.5"})
	actor := types.User{ID: 4, Role: types.RoleDeveloper}
	svc.Record(ctx, actor, auditEntry(types.AuditUpdate, "task", 12, strings.Repeat("x", 250), map[string]any{
		"status": []string{"todo", "done"},
	}))

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	require.NotNil(t, entry.UserID)
	assert.Equal(t, 4, *entry.UserID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.7", *entry.IPAddress)
	assert.Equal(t, "curl/8.5", entry.UserAgent)
	assert.Len(t, entry.ObjectRepr, maxObjectRepr)
	assert.JSONEq(t, `{"status":["todo","done"]}`, string(entry.Changes))
}

func TestAuditRecordAnonymous(t *testing.T) {
	repo := &memoryAudit{}
	svc := newAuditService(repo)

	svc.Record(context.Background(), types.User{}, auditEntry(types.AuditUpdate, "user", 4, "dana", nil))

	require.Len(t, repo.entries, 1)
	assert.Nil(t, repo.entries[0].UserID)
	assert.Nil(t, repo.entries[0].IPAddress)
	assert.Nil(t, repo.entries[0].Changes)
}

func TestAuditRecordSwallowsFailures(t *testing.T) {
	repo := &memoryAudit{err: errors.New("disk full")}
	svc := newAuditService(repo)

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), types.User{ID: 1, Role: types.RoleAdmin}, auditEntry(types.AuditDelete, "project", 1, "apollo", nil))
	})
	assert.Empty(t, repo.entries)
}

func TestAuditListAdminOnly(t *testing.T) {
	repo := &memoryAudit{}
	svc := newAuditService(repo)
	for i := 1; i <= 3; i++ {
		svc.Record(context.Background(), types.User{ID: 1, Role: types.RoleAdmin}, auditEntry(types.AuditCreate, "task", i, "t", nil))
	}

	list, err := svc.List(context.Background(), types.User{ID: 1, Role: types.RoleAdmin}, Page{Offset: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Items, 2)

	for _, role := range []types.Role{types.RoleManager, types.RoleDeveloper} {
		_, err := svc.List(context.Background(), types.User{ID: 2, Role: role}, Page{Limit: 10})
		assert.ErrorIs(t, err, authz.ErrPermissionDenied, role)
	}
}
