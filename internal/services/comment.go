package services

import (
	"context"
	"strings"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/types"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	List(ctx context.Context, scope authz.Scope, taskID *int, offset, limit int) ([]types.Comment, int, error)
	Get(ctx context.Context, id int) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Update(ctx context.Context, id int, content string) error
	Delete(ctx context.Context, id int) error
}

// TaskGetter loads a single task by id.
type TaskGetter interface {
	Get(ctx context.Context, id int) (types.Task, error)
}

// CommentService implements comment use cases.
type CommentService struct {
	comments CommentRepository
	tasks    TaskGetter
	authz    Authorizer
	audit    Auditor
}

func NewCommentService(comments CommentRepository, tasks TaskGetter, authorizer Authorizer, audit Auditor) *CommentService {
	return &CommentService{
		comments: comments,
		tasks:    tasks,
		authz:    authorizer,
		audit:    auditorOrNop(audit),
	}
}

func (s *CommentService) List(ctx context.Context, actor types.User, taskID *int, page Page) (List[types.Comment], error) {
	scope, err := s.authz.Scope(ctx, actor)
	if err != nil {
		return List[types.Comment]{}, err
	}
	comments, total, err := s.comments.List(ctx, scope, taskID, page.Offset, page.Limit)
	if err != nil {
		return List[types.Comment]{}, err
	}
	return List[types.Comment]{Items: comments, Total: total}, nil
}

func (s *CommentService) Get(ctx context.Context, actor types.User, id int) (types.Comment, error) {
	comment, err := s.comments.Get(ctx, id)
	if err != nil {
		return types.Comment{}, err
	}
	if err := s.authz.Authorize(ctx, actor, comment, authz.IntentRead); err != nil {
		return types.Comment{}, err
	}
	return comment, nil
}

// Create adds a comment by actor on a task actor can read.
func (s *CommentService) Create(ctx context.Context, actor types.User, taskID int, content string) (types.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Comment{}, invalid("content", "is required")
	}
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return types.Comment{}, err
	}
	if err := s.authz.Authorize(ctx, actor, task, authz.IntentRead); err != nil {
		return types.Comment{}, err
	}

	author := actor.ID
	comment, err := s.comments.Create(ctx, types.Comment{TaskID: task.ID, UserID: &author, Content: content})
	if err != nil {
		return types.Comment{}, err
	}
	s.audit.Record(ctx, actor, auditEntry(types.AuditCreate, "comment", comment.ID, excerpt(comment.Content), nil))
	return comment, nil
}

func (s *CommentService) Update(ctx context.Context, actor types.User, id int, content string) (types.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Comment{}, invalid("content", "is required")
	}
	comment, err := s.comments.Get(ctx, id)
	if err != nil {
		return types.Comment{}, err
	}
	if err := s.authz.Authorize(ctx, actor, comment, authz.IntentWrite); err != nil {
		return types.Comment{}, err
	}
	if err := s.comments.Update(ctx, comment.ID, content); err != nil {
		return types.Comment{}, err
	}
	comment.Content = content
	s.audit.Record(ctx, actor, auditEntry(types.AuditUpdate, "comment", comment.ID, excerpt(content), nil))
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, actor types.User, id int) error {
	comment, err := s.comments.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, actor, comment, authz.IntentWrite); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, auditEntry(types.AuditDelete, "comment", comment.ID, excerpt(comment.Content), nil))
	return nil
}

func excerpt(text string) string {
	const max = 50
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
