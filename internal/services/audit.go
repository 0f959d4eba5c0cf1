package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/types"
)

const maxObjectRepr = 200

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry types.AuditLog) (types.AuditLog, error)
	List(ctx context.Context, offset, limit int) ([]types.AuditLog, int, error)
}

// Auditor records mutations. Recording never fails the calling operation.
type Auditor interface {
	Record(ctx context.Context, actor types.User, entry types.AuditLog)
}

// AuditService appends audit entries and serves them to admins.
type AuditService struct {
	repo  AuditRepository
	authz Authorizer
	log   *slog.Logger
}

func NewAuditService(repo AuditRepository, authorizer Authorizer, log *slog.Logger) *AuditService {
	return &AuditService{repo: repo, authz: authorizer, log: log}
}

// Record stamps entry with the actor and request metadata from ctx and
// stores it. Failures are logged.
func (s *AuditService) Record(ctx context.Context, actor types.User, entry types.AuditLog) {
	if actor.ID != 0 {
		id := actor.ID
		entry.UserID = &id
	}
	meta := requestMetaFrom(ctx)
	if meta.IP != "" {
		ip := meta.IP
		entry.IPAddress = &ip
	}
	entry.UserAgent = meta.UserAgent
	if len(entry.ObjectRepr) > maxObjectRepr {
		entry.ObjectRepr = entry.ObjectRepr[:maxObjectRepr]
	}

	if _, err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn("failed to record audit entry",
			logger.Err(err),
			slog.String("action", string(entry.Action)),
			slog.String("object_type", entry.ObjectType),
			slog.Int("object_id", entry.ObjectID),
		)
	}
}

func (s *AuditService) List(ctx context.Context, actor types.User, page Page) (List[types.AuditLog], error) {
	if err := s.authz.RequireRole(actor, authz.IntentRead, types.RoleAdmin); err != nil {
		return List[types.AuditLog]{}, err
	}
	entries, total, err := s.repo.List(ctx, page.Offset, page.Limit)
	if err != nil {
		return List[types.AuditLog]{}, err
	}
	return List[types.AuditLog]{Items: entries, Total: total}, nil
}

func auditEntry(action types.AuditAction, objectType string, objectID int, repr string, changes map[string]any) types.AuditLog {
	entry := types.AuditLog{
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
		ObjectRepr: repr,
	}
	if len(changes) > 0 {
		if raw, err := json.Marshal(changes); err == nil {
			entry.Changes = raw
		}
	}
	return entry
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, types.User, types.AuditLog) {}

func auditorOrNop(a Auditor) Auditor {
	if a == nil {
		return nopAuditor{}
	}
	return a
}
