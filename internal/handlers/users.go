package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/internal/services"
	"github.com/taskdash/apiserver/types"
)

// UserHandler exposes user administration endpoints.
type UserHandler struct {
	users *services.UserService
	log   *slog.Logger
}

func NewUserHandler(users *services.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// UserRouter registers user routes. Every route requires authentication.
func UserRouter(r chi.Router, h *UserHandler) {
	r.Get("/", h.ListUsers)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", h.GetUser)
		r.Patch("/role", h.UpdateRole)
		r.Patch("/team", h.AssignTeam)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var role *types.Role
	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		parsed, err := types.ParseRole(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid role")
			return
		}
		role = &parsed
	}

	list, err := h.users.List(r.Context(), actor, role, p.services())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, listResponse(p, list))
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.UpdateRole(r.Context(), actor, id, req.Role)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to update role")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) AssignTeam(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req AssignTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.AssignTeam(r.Context(), actor, id, req.TeamID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to assign team")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// AssignTeamRequest clears the team when TeamID is null.
type AssignTeamRequest struct {
	TeamID *int `json:"team_id" validate:"omitempty,gt=0"`
}
