package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/internal/services"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

// TaskHandler provides HTTP handlers for tasks.
type TaskHandler struct {
	tasks *services.TaskService
	log   *slog.Logger
}

func NewTaskHandler(tasks *services.TaskService, log *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, log: log}
}

// TaskRouter registers task routes. Every route requires authentication.
func TaskRouter(r chi.Router, h *TaskHandler) {
	r.Get("/", h.ListTasks)
	r.Post("/", h.CreateTask)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", h.GetTask)
		r.Put("/", h.UpdateTask)
		r.Delete("/", h.DeleteTask)
	})
}

// ListTasks accepts optional project and status filters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var f store.TaskFilter
	if f.ProjectID, err = parseOptionalID(r, "project"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := types.ParseTaskStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = &status
	}

	list, err := h.tasks.List(r.Context(), actor, f, p.services())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, listResponse(p, list))
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.tasks.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to fetch task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.tasks.Create(r.Context(), actor, req.input())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.tasks.Update(r.Context(), actor, id, req.input())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.tasks.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, h.log, err, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type TaskRequest struct {
	ProjectID   int    `json:"project_id" validate:"required,gt=0"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	AssignedTo  *int   `json:"assigned_to" validate:"omitempty,gt=0"`
	Status      string `json:"status"`
	DueDate     *Date  `json:"due_date"`
}

func (req TaskRequest) input() services.TaskInput {
	return services.TaskInput{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Status:      req.Status,
		DueDate:     req.DueDate.ptr(),
	}
}
