package services

import (
	"context"
	"strings"
	"time"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/types"
)

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	List(ctx context.Context, scope authz.Scope, offset, limit int) ([]types.Project, int, error)
	Get(ctx context.Context, id int) (types.Project, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	Delete(ctx context.Context, id int) error
}

// ProjectTaskLister lists the tasks of a project.
type ProjectTaskLister interface {
	ListByProject(ctx context.Context, projectID int) ([]types.Task, error)
}

// ProjectInput carries writable project fields.
type ProjectInput struct {
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
}

func (in *ProjectInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return invalid("end_date", "must not be before start_date")
	}
	return nil
}

// ProjectService implements project use cases.
type ProjectService struct {
	projects ProjectRepository
	tasks    ProjectTaskLister
	authz    Authorizer
	audit    Auditor
}

func NewProjectService(projects ProjectRepository, tasks ProjectTaskLister, authorizer Authorizer, audit Auditor) *ProjectService {
	return &ProjectService{
		projects: projects,
		tasks:    tasks,
		authz:    authorizer,
		audit:    auditorOrNop(audit),
	}
}

func (s *ProjectService) List(ctx context.Context, actor types.User, page Page) (List[types.Project], error) {
	scope, err := s.authz.Scope(ctx, actor)
	if err != nil {
		return List[types.Project]{}, err
	}
	projects, total, err := s.projects.List(ctx, scope, page.Offset, page.Limit)
	if err != nil {
		return List[types.Project]{}, err
	}
	return List[types.Project]{Items: projects, Total: total}, nil
}

// Get returns a project with the tasks of it that actor may see.
func (s *ProjectService) Get(ctx context.Context, actor types.User, id int) (types.Project, error) {
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		return types.Project{}, err
	}
	if err := s.authz.Authorize(ctx, actor, project, authz.IntentRead); err != nil {
		return types.Project{}, err
	}

	scope, err := s.authz.Scope(ctx, actor)
	if err != nil {
		return types.Project{}, err
	}
	tasks, err := s.tasks.ListByProject(ctx, project.ID)
	if err != nil {
		return types.Project{}, err
	}
	project.Tasks = make([]types.Task, 0, len(tasks))
	for _, task := range tasks {
		if scope.Permits(task.Parties()) {
			project.Tasks = append(project.Tasks, task)
		}
	}
	return project, nil
}

// Create adds a project owned by actor. Only admins create projects.
func (s *ProjectService) Create(ctx context.Context, actor types.User, in ProjectInput) (types.Project, error) {
	if err := s.authz.RequireRole(actor, authz.IntentWrite, types.RoleAdmin); err != nil {
		return types.Project{}, err
	}
	if err := in.normalize(); err != nil {
		return types.Project{}, err
	}

	project, err := s.projects.Create(ctx, types.Project{
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     actor.ID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	})
	if err != nil {
		return types.Project{}, err
	}
	project.OwnerUsername = actor.Username

	s.audit.Record(ctx, actor, auditEntry(types.AuditCreate, "project", project.ID, project.Name, nil))
	return project, nil
}

// Update replaces the writable fields of a project. Developers never
// modify projects.
func (s *ProjectService) Update(ctx context.Context, actor types.User, id int, in ProjectInput) (types.Project, error) {
	if err := in.normalize(); err != nil {
		return types.Project{}, err
	}
	project, err := s.writable(ctx, actor, id)
	if err != nil {
		return types.Project{}, err
	}

	project.Name = in.Name
	project.Description = in.Description
	project.StartDate = in.StartDate
	project.EndDate = in.EndDate
	updated, err := s.projects.Update(ctx, project)
	if err != nil {
		return types.Project{}, err
	}

	s.audit.Record(ctx, actor, auditEntry(types.AuditUpdate, "project", updated.ID, updated.Name, map[string]any{
		"name":        updated.Name,
		"description": updated.Description,
		"start_date":  updated.StartDate,
		"end_date":    updated.EndDate,
	}))
	return updated, nil
}

func (s *ProjectService) Delete(ctx context.Context, actor types.User, id int) error {
	project, err := s.writable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, project.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, auditEntry(types.AuditDelete, "project", project.ID, project.Name, nil))
	return nil
}

func (s *ProjectService) writable(ctx context.Context, actor types.User, id int) (types.Project, error) {
	if err := s.authz.RequireRole(actor, authz.IntentWrite, types.RoleAdmin, types.RoleManager); err != nil {
		return types.Project{}, err
	}
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		return types.Project{}, err
	}
	if err := s.authz.Authorize(ctx, actor, project, authz.IntentWrite); err != nil {
		return types.Project{}, err
	}
	return project, nil
}
