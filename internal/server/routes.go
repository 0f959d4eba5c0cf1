package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskdash/apiserver/internal/handlers"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
	Teams    *handlers.TeamHandler
	Projects *handlers.ProjectHandler
	Tasks    *handlers.TaskHandler
	Comments *handlers.CommentHandler
	Files    *handlers.FileHandler
	TimeLogs *handlers.TimeLogHandler
	Audit    *handlers.AuditHandler
}

// NewRouter mounts every route. requireAuth guards all routes except
// registration, login, token refresh, password reset, health and metrics.
func NewRouter(h Handlers, requireAuth func(http.Handler) http.Handler, metrics *Metrics, log *slog.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(log),
		middleware.Recoverer,
		metrics.Instrument,
		handlers.RequestMeta,
		middleware.Timeout(60*time.Second),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, h.Auth, requireAuth)
	})

	router.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Route("/users", func(r chi.Router) { handlers.UserRouter(r, h.Users) })
		r.Route("/teams", func(r chi.Router) { handlers.TeamRouter(r, h.Teams) })
		r.Route("/projects", func(r chi.Router) { handlers.ProjectRouter(r, h.Projects) })
		r.Route("/tasks", func(r chi.Router) { handlers.TaskRouter(r, h.Tasks) })
		r.Route("/comments", func(r chi.Router) { handlers.CommentRouter(r, h.Comments) })
		r.Route("/files", func(r chi.Router) { handlers.FileRouter(r, h.Files) })
		r.Route("/timelogs", func(r chi.Router) { handlers.TimeLogRouter(r, h.TimeLogs) })
		r.Route("/audit-logs", func(r chi.Router) { handlers.AuditRouter(r, h.Audit) })
	})

	return router
}
