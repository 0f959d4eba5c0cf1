package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/internal/services"
)

// AuditHandler exposes the audit trail to admins.
type AuditHandler struct {
	audit *services.AuditService
	log   *slog.Logger
}

func NewAuditHandler(audit *services.AuditService, log *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, log: log}
}

func AuditRouter(r chi.Router, h *AuditHandler) {
	r.Get("/", h.ListAuditLogs)
}

func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.audit.List(r.Context(), actor, p.services())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, listResponse(p, list))
}
