package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/internal/services"
)

// TeamHandler exposes team endpoints.
type TeamHandler struct {
	teams *services.TeamService
	log   *slog.Logger
}

func NewTeamHandler(teams *services.TeamService, log *slog.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, log: log}
}

// TeamRouter registers team routes. Every route requires authentication.
func TeamRouter(r chi.Router, h *TeamHandler) {
	r.Get("/", h.ListTeams)
	r.Post("/", h.CreateTeam)
	r.Get("/managed", h.ManagedTeams)
	r.Get("/{teamID}/members", h.TeamMembers)
}

func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.teams.List(r.Context(), actor, p.services())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list teams")
		return
	}
	writeJSON(w, http.StatusOK, listResponse(p, list))
}

func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	team, err := h.teams.Create(r.Context(), actor, req.Name, req.ManagerID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create team")
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// ManagedTeams lists the teams the calling manager runs and their members.
func (h *TeamHandler) ManagedTeams(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	managed, err := h.teams.Managed(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to load managed teams")
		return
	}
	writeJSON(w, http.StatusOK, managed)
}

func (h *TeamHandler) TeamMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "teamID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	members, err := h.teams.Members(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to load team members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type CreateTeamRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	ManagerID int    `json:"manager_id" validate:"required,gt=0"`
}
