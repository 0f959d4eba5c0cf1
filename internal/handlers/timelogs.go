package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/internal/services"
)

// TimeLogHandler provides HTTP handlers for time logs.
type TimeLogHandler struct {
	logs *services.TimeLogService
	log  *slog.Logger
}

func NewTimeLogHandler(logs *services.TimeLogService, log *slog.Logger) *TimeLogHandler {
	return &TimeLogHandler{logs: logs, log: log}
}

// TimeLogRouter registers time log routes. Every route requires authentication.
func TimeLogRouter(r chi.Router, h *TimeLogHandler) {
	r.Get("/", h.ListTimeLogs)
	r.Post("/", h.CreateTimeLog)
	r.Route("/{timelogID}", func(r chi.Router) {
		r.Get("/", h.GetTimeLog)
		r.Put("/", h.UpdateTimeLog)
		r.Delete("/", h.DeleteTimeLog)
	})
}

func (h *TimeLogHandler) ListTimeLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	taskID, err := parseOptionalID(r, "task")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.logs.List(r.Context(), actor, taskID, p.services())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list time logs")
		return
	}
	writeJSON(w, http.StatusOK, listResponse(p, list))
}

func (h *TimeLogHandler) GetTimeLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "timelogID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.logs.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to fetch time log")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *TimeLogHandler) CreateTimeLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateTimeLogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.logs.Create(r.Context(), actor, req.TaskID, req.Hours, req.Description)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create time log")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *TimeLogHandler) UpdateTimeLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "timelogID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateTimeLogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.logs.Update(r.Context(), actor, id, req.Hours, req.Description)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to update time log")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *TimeLogHandler) DeleteTimeLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "timelogID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.logs.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, h.log, err, "failed to delete time log")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Hours range checks live in the service.
type CreateTimeLogRequest struct {
	TaskID      int     `json:"task_id" validate:"required,gt=0"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
}

type UpdateTimeLogRequest struct {
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
}
