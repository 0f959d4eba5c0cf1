package services

import (
	"context"
	"strings"
	"time"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context, scope authz.Scope, f store.TaskFilter, offset, limit int) ([]types.Task, int, error)
	Get(ctx context.Context, id int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id int) error
}

// ProjectGetter loads a single project by id.
type ProjectGetter interface {
	Get(ctx context.Context, id int) (types.Project, error)
}

// TaskInput carries writable task fields.
type TaskInput struct {
	ProjectID   int
	Title       string
	Description string
	AssignedTo  *int
	Status      string
	DueDate     *time.Time
}

func (in *TaskInput) normalize() (types.TaskStatus, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return "", invalid("title", "is required")
	}
	if in.ProjectID < 1 {
		return "", invalid("project_id", "is required")
	}
	status, err := types.ParseTaskStatus(in.Status)
	if err != nil {
		return "", invalid("status", err.Error())
	}
	return status, nil
}

// TaskService implements task use cases. Assignment is checked inside the
// same transaction that writes the task.
type TaskService struct {
	trm      TransactionManager
	tasks    TaskRepository
	projects ProjectGetter
	users    UserGetter
	authz    Authorizer
	audit    Auditor
}

func NewTaskService(
	trm TransactionManager,
	tasks TaskRepository,
	projects ProjectGetter,
	users UserGetter,
	authorizer Authorizer,
	audit Auditor,
) *TaskService {
	return &TaskService{
		trm:      trm,
		tasks:    tasks,
		projects: projects,
		users:    users,
		authz:    authorizer,
		audit:    auditorOrNop(audit),
	}
}

func (s *TaskService) List(ctx context.Context, actor types.User, f store.TaskFilter, page Page) (List[types.Task], error) {
	scope, err := s.authz.Scope(ctx, actor)
	if err != nil {
		return List[types.Task]{}, err
	}
	tasks, total, err := s.tasks.List(ctx, scope, f, page.Offset, page.Limit)
	if err != nil {
		return List[types.Task]{}, err
	}
	return List[types.Task]{Items: tasks, Total: total}, nil
}

func (s *TaskService) Get(ctx context.Context, actor types.User, id int) (types.Task, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return types.Task{}, err
	}
	if err := s.authz.Authorize(ctx, actor, task, authz.IntentRead); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

// Create adds a task to an existing project. A developer creating a task
// without an assignee becomes its assignee.
func (s *TaskService) Create(ctx context.Context, actor types.User, in TaskInput) (types.Task, error) {
	status, err := in.normalize()
	if err != nil {
		return types.Task{}, err
	}
	if in.AssignedTo == nil && actor.Role == types.RoleDeveloper {
		self := actor.ID
		in.AssignedTo = &self
	}

	var created types.Task
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		if _, err := s.projects.Get(ctx, in.ProjectID); err != nil {
			return err
		}
		if err := s.checkAssignee(ctx, actor, in.AssignedTo); err != nil {
			return err
		}

		created, err = s.tasks.Create(ctx, types.Task{
			Title:       in.Title,
			Description: in.Description,
			ProjectID:   in.ProjectID,
			AssignedTo:  in.AssignedTo,
			Status:      status,
			DueDate:     in.DueDate,
		})
		return err
	})
	if err != nil {
		return types.Task{}, err
	}

	s.audit.Record(ctx, actor, auditEntry(types.AuditCreate, "task", created.ID, created.Title, map[string]any{
		"project_id":  created.ProjectID,
		"assigned_to": created.AssignedTo,
	}))
	return created, nil
}

// Update replaces the writable fields of a task. Changing the assignee is
// subject to the same rule as creation.
func (s *TaskService) Update(ctx context.Context, actor types.User, id int, in TaskInput) (types.Task, error) {
	status, err := in.normalize()
	if err != nil {
		return types.Task{}, err
	}

	var updated types.Task
	var previousAssignee *int
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		task, err := s.tasks.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.Authorize(ctx, actor, task, authz.IntentWrite); err != nil {
			return err
		}
		if in.ProjectID != task.ProjectID {
			if _, err := s.projects.Get(ctx, in.ProjectID); err != nil {
				return err
			}
		}
		if !sameAssignee(task.AssignedTo, in.AssignedTo) {
			if err := s.checkAssignee(ctx, actor, in.AssignedTo); err != nil {
				return err
			}
		}

		previousAssignee = task.AssignedTo
		task.Title = in.Title
		task.Description = in.Description
		task.ProjectID = in.ProjectID
		task.AssignedTo = in.AssignedTo
		task.Status = status
		task.DueDate = in.DueDate
		updated, err = s.tasks.Update(ctx, task)
		return err
	})
	if err != nil {
		return types.Task{}, err
	}

	changes := map[string]any{"status": updated.Status}
	if !sameAssignee(previousAssignee, updated.AssignedTo) {
		changes["assigned_to"] = []*int{previousAssignee, updated.AssignedTo}
	}
	s.audit.Record(ctx, actor, auditEntry(types.AuditUpdate, "task", updated.ID, updated.Title, changes))
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, actor types.User, id int) error {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, actor, task, authz.IntentWrite); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, auditEntry(types.AuditDelete, "task", task.ID, task.Title, nil))
	return nil
}

// checkAssignee verifies that actor may hand a task to assigneeID. Leaving
// a task unassigned is allowed.
func (s *TaskService) checkAssignee(ctx context.Context, actor types.User, assigneeID *int) error {
	if assigneeID == nil {
		return nil
	}
	assignee, err := lookupUser(ctx, s.users, "assigned_to", *assigneeID)
	if err != nil {
		return err
	}
	return s.authz.CanAssign(ctx, actor, assignee)
}

func sameAssignee(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
