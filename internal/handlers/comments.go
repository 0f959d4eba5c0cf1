package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/internal/services"
)

// CommentHandler provides HTTP handlers for task comments.
type CommentHandler struct {
	comments *services.CommentService
	log      *slog.Logger
}

func NewCommentHandler(comments *services.CommentService, log *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, log: log}
}

// CommentRouter registers comment routes. Every route requires authentication.
func CommentRouter(r chi.Router, h *CommentHandler) {
	r.Get("/", h.ListComments)
	r.Post("/", h.CreateComment)
	r.Route("/{commentID}", func(r chi.Router) {
		r.Get("/", h.GetComment)
		r.Put("/", h.UpdateComment)
		r.Delete("/", h.DeleteComment)
	})
}

func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.comments.List(r.Context(), actor, taskID, p.services())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, listResponse(p, list))
}

func (h *CommentHandler) GetComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "commentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.comments.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to fetch comment")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.comments.Create(r.Context(), actor, req.TaskID, req.Content)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create comment")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "commentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.comments.Update(r.Context(), actor, id, req.Content)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to update comment")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "commentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.comments.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, h.log, err, "failed to delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateCommentRequest struct {
	TaskID  int    `json:"task_id" validate:"required,gt=0"`
	Content string `json:"content" validate:"required"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required"`
}
