package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

// MaxLoggedHours is the largest value a single time log accepts.
const MaxLoggedHours = 999.99

// TimeLogRepository defines persistence operations for time logs.
type TimeLogRepository interface {
	List(ctx context.Context, scope authz.Scope, taskID *int, offset, limit int) ([]types.TimeLog, int, error)
	Get(ctx context.Context, id int) (types.TimeLog, error)
	Create(ctx context.Context, log types.TimeLog) (types.TimeLog, error)
	Update(ctx context.Context, log types.TimeLog) error
	Delete(ctx context.Context, id int) error
}

// TimeLogService implements time tracking use cases. A user logs time on
// a task at most once.
type TimeLogService struct {
	logs  TimeLogRepository
	tasks TaskGetter
	authz Authorizer
	audit Auditor
}

func NewTimeLogService(logs TimeLogRepository, tasks TaskGetter, authorizer Authorizer, audit Auditor) *TimeLogService {
	return &TimeLogService{
		logs:  logs,
		tasks: tasks,
		authz: authorizer,
		audit: auditorOrNop(audit),
	}
}

func (s *TimeLogService) List(ctx context.Context, actor types.User, taskID *int, page Page) (List[types.TimeLog], error) {
	scope, err := s.authz.Scope(ctx, actor)
	if err != nil {
		return List[types.TimeLog]{}, err
	}
	logs, total, err := s.logs.List(ctx, scope, taskID, page.Offset, page.Limit)
	if err != nil {
		return List[types.TimeLog]{}, err
	}
	return List[types.TimeLog]{Items: logs, Total: total}, nil
}

func (s *TimeLogService) Get(ctx context.Context, actor types.User, id int) (types.TimeLog, error) {
	log, err := s.logs.Get(ctx, id)
	if err != nil {
		return types.TimeLog{}, err
	}
	if err := s.authz.Authorize(ctx, actor, log, authz.IntentRead); err != nil {
		return types.TimeLog{}, err
	}
	return log, nil
}

// Create logs hours by actor on a task actor can read. A second log for
// the same task returns store.ErrConflict.
func (s *TimeLogService) Create(ctx context.Context, actor types.User, taskID int, hours float64, description string) (types.TimeLog, error) {
	if err := validateHours(hours); err != nil {
		return types.TimeLog{}, err
	}
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return types.TimeLog{}, err
	}
	if err := s.authz.Authorize(ctx, actor, task, authz.IntentRead); err != nil {
		return types.TimeLog{}, err
	}

	author := actor.ID
	log, err := s.logs.Create(ctx, types.TimeLog{
		TaskID:      task.ID,
		UserID:      &author,
		Hours:       hours,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.TimeLog{}, fmt.Errorf("time already logged for task %d: %w", task.ID, store.ErrConflict)
		}
		return types.TimeLog{}, err
	}

	s.audit.Record(ctx, actor, auditEntry(types.AuditCreate, "timelog", log.ID, task.Title, map[string]any{
		"hours": log.Hours,
	}))
	return log, nil
}

func (s *TimeLogService) Update(ctx context.Context, actor types.User, id int, hours float64, description string) (types.TimeLog, error) {
	if err := validateHours(hours); err != nil {
		return types.TimeLog{}, err
	}
	log, err := s.logs.Get(ctx, id)
	if err != nil {
		return types.TimeLog{}, err
	}
	if err := s.authz.Authorize(ctx, actor, log, authz.IntentWrite); err != nil {
		return types.TimeLog{}, err
	}

	previous := log.Hours
	log.Hours = hours
	log.Description = strings.TrimSpace(description)
	if err := s.logs.Update(ctx, log); err != nil {
		return types.TimeLog{}, err
	}

	s.audit.Record(ctx, actor, auditEntry(types.AuditUpdate, "timelog", log.ID, log.TaskTitle, map[string]any{
		"hours": []float64{previous, log.Hours},
	}))
	return log, nil
}

func (s *TimeLogService) Delete(ctx context.Context, actor types.User, id int) error {
	log, err := s.logs.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, actor, log, authz.IntentWrite); err != nil {
		return err
	}
	if err := s.logs.Delete(ctx, log.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, auditEntry(types.AuditDelete, "timelog", log.ID, log.TaskTitle, nil))
	return nil
}

func validateHours(hours float64) error {
	if math.IsNaN(hours) || hours <= 0 || hours > MaxLoggedHours {
		return invalid("hours", fmt.Sprintf("must be greater than 0 and at most %.2f", MaxLoggedHours))
	}
	if cents := hours * 100; math.Abs(cents-math.Round(cents)) > 1e-6 {
		return invalid("hours", "must have at most two decimal places")
	}
	return nil
}
