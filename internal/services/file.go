package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/types"
)

// MaxUploadSize bounds the size of a single uploaded file.
const MaxUploadSize = 32 << 20

// FileRepository stores file metadata.
type FileRepository interface {
	List(ctx context.Context, scope authz.Scope, taskID *int, offset, limit int) ([]types.File, int, error)
	Get(ctx context.Context, id int) (types.File, error)
	Create(ctx context.Context, file types.File) (types.File, error)
	Delete(ctx context.Context, id int) error
}

// ObjectStore holds file contents.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Upload describes an incoming file.
type Upload struct {
	TaskID   int
	FileName string
	MimeType string
	Size     int64
	Content  io.Reader
}

// FileService stores task attachments in object storage and their metadata
// in the database.
type FileService struct {
	files   FileRepository
	tasks   TaskGetter
	objects ObjectStore
	authz   Authorizer
	audit   Auditor
	log     *slog.Logger
}

func NewFileService(files FileRepository, tasks TaskGetter, objects ObjectStore, authorizer Authorizer, audit Auditor, log *slog.Logger) *FileService {
	return &FileService{
		files:   files,
		tasks:   tasks,
		objects: objects,
		authz:   authorizer,
		audit:   auditorOrNop(audit),
		log:     log,
	}
}

func (s *FileService) List(ctx context.Context, actor types.User, taskID *int, page Page) (List[types.File], error) {
	scope, err := s.authz.Scope(ctx, actor)
	if err != nil {
		return List[types.File]{}, err
	}
	files, total, err := s.files.List(ctx, scope, taskID, page.Offset, page.Limit)
	if err != nil {
		return List[types.File]{}, err
	}
	return List[types.File]{Items: files, Total: total}, nil
}

func (s *FileService) Get(ctx context.Context, actor types.User, id int) (types.File, error) {
	file, err := s.files.Get(ctx, id)
	if err != nil {
		return types.File{}, err
	}
	if err := s.authz.Authorize(ctx, actor, file, authz.IntentRead); err != nil {
		return types.File{}, err
	}
	return file, nil
}

// Upload stores a new attachment on a task actor can read.
func (s *FileService) Upload(ctx context.Context, actor types.User, in Upload) (types.File, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return types.File{}, invalid("file", "file name is required")
	}
	if in.Size <= 0 {
		return types.File{}, invalid("file", "file is empty")
	}
	if in.Size > MaxUploadSize {
		return types.File{}, invalid("file", fmt.Sprintf("file exceeds %d bytes", MaxUploadSize))
	}
	mimeType := strings.TrimSpace(in.MimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	task, err := s.tasks.Get(ctx, in.TaskID)
	if err != nil {
		return types.File{}, err
	}
	if err := s.authz.Authorize(ctx, actor, task, authz.IntentRead); err != nil {
		return types.File{}, err
	}

	key := objectKey(task.ID, name)
	if err := s.objects.Put(ctx, key, in.Content, in.Size, mimeType); err != nil {
		return types.File{}, fmt.Errorf("store object: %w", err)
	}

	uploader := actor.ID
	file, err := s.files.Create(ctx, types.File{
		TaskID:     task.ID,
		UploadedBy: &uploader,
		ObjectKey:  key,
		FileName:   name,
		MimeType:   mimeType,
		FileSize:   in.Size,
	})
	if err != nil {
		s.removeObject(ctx, key)
		return types.File{}, err
	}

	s.audit.Record(ctx, actor, auditEntry(types.AuditCreate, "file", file.ID, file.FileName, map[string]any{
		"task_id":   file.TaskID,
		"file_size": file.FileSize,
	}))
	return file, nil
}

// Open returns the file metadata and a reader over its content. The caller
// closes the reader.
func (s *FileService) Open(ctx context.Context, actor types.User, id int) (types.File, io.ReadCloser, error) {
	file, err := s.Get(ctx, actor, id)
	if err != nil {
		return types.File{}, nil, err
	}
	body, err := s.objects.Get(ctx, file.ObjectKey)
	if err != nil {
		return types.File{}, nil, fmt.Errorf("open object: %w", err)
	}
	return file, body, nil
}

func (s *FileService) Delete(ctx context.Context, actor types.User, id int) error {
	file, err := s.files.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, actor, file, authz.IntentWrite); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, file.ID); err != nil {
		return err
	}
	s.removeObject(ctx, file.ObjectKey)
	s.audit.Record(ctx, actor, auditEntry(types.AuditDelete, "file", file.ID, file.FileName, nil))
	return nil
}

func (s *FileService) removeObject(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete object", logger.Err(err), slog.String("key", key))
	}
}

func objectKey(taskID int, name string) string {
	return fmt.Sprintf("tasks/%d/%s/%s", taskID, uuid.NewString(), name)
}
