package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/internal/services"
)

// ProjectHandler provides HTTP handlers for projects.
type ProjectHandler struct {
	projects *services.ProjectService
	log      *slog.Logger
}

func NewProjectHandler(projects *services.ProjectService, log *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, log: log}
}

// ProjectRouter registers project routes. Every route requires authentication.
func ProjectRouter(r chi.Router, h *ProjectHandler) {
	r.Get("/", h.ListProjects)
	r.Post("/", h.CreateProject)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", h.GetProject)
		r.Put("/", h.UpdateProject)
		r.Delete("/", h.DeleteProject)
	})
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.projects.List(r.Context(), actor, p.services())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, listResponse(p, list))
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to fetch project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projects.Create(r.Context(), actor, req.input())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projects.Update(r.Context(), actor, id, req.input())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to update project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.projects.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, h.log, err, "failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
	StartDate   *Date  `json:"start_date"`
	EndDate     *Date  `json:"end_date"`
}

func (req ProjectRequest) input() services.ProjectInput {
	return services.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate.ptr(),
		EndDate:     req.EndDate.ptr(),
	}
}
