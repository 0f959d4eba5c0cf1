package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/config"
	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/cache"
	"github.com/taskdash/apiserver/internal/db"
	"github.com/taskdash/apiserver/internal/handlers"
	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/internal/mail"
	"github.com/taskdash/apiserver/internal/mq"
	"github.com/taskdash/apiserver/internal/services"
	"github.com/taskdash/apiserver/internal/storage"
	"github.com/taskdash/apiserver/internal/store"
)

// Server wraps the HTTP server, the router and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	closers    []io.Closer
	log        *slog.Logger
}

// New connects every backend named in cfg and assembles the API.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *Server, err error) {
	s := &Server{log: log}
	defer func() {
		if err != nil {
			s.closeResources()
		}
	}()

	tokens, err := handlers.NewTokenIssuer(cfg.JWT)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s.closers = append(s.closers, dbConn)
	trManager := manager.Must(trmsqlx.NewDefaultFactory(dbConn))

	tokenStore, err := openTokenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, tokenStore)

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open object storage: %w", err)
	}
	if c, ok := objects.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}

	notifier, err := openNotifier(ctx, cfg.MQ, log)
	if err != nil {
		return nil, err
	}
	if c, ok := notifier.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}

	metrics := NewMetrics()

	userRepo := store.NewUserRepository(dbConn)
	teamRepo := store.NewTeamRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)
	taskRepo := store.NewTaskRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)
	fileRepo := store.NewFileRepository(dbConn)
	timeLogRepo := store.NewTimeLogRepository(dbConn)
	auditRepo := store.NewAuditRepository(dbConn)

	evaluator := authz.NewEvaluator(
		store.NewDirectory(userRepo, teamRepo),
		authz.Policy{ManagerSeesUnassigned: cfg.Authz.ManagerSeesUnassigned},
		authz.WithDenyObserver(metrics.ObserveDenial),
	)

	auditService := services.NewAuditService(auditRepo, evaluator, log)
	accountService := services.NewAccountService(userRepo, auditService)
	resetService := services.NewPasswordResetService(
		userRepo,
		tokenStore,
		notifier,
		cfg.FrontendURL,
		log,
		services.WithResetURLLogging(!cfg.IsProduction()),
		services.WithResetObserver(metrics.ObserveReset),
		services.WithResetAuditor(auditService),
	)
	userService := services.NewUserService(trManager, userRepo, teamRepo, evaluator, auditService)
	teamService := services.NewTeamService(teamRepo, userRepo, userRepo, evaluator, auditService)
	projectService := services.NewProjectService(projectRepo, taskRepo, evaluator, auditService)
	taskService := services.NewTaskService(trManager, taskRepo, projectRepo, userRepo, evaluator, auditService)
	commentService := services.NewCommentService(commentRepo, taskRepo, evaluator, auditService)
	fileService := services.NewFileService(fileRepo, taskRepo, objects, evaluator, auditService, log)
	timeLogService := services.NewTimeLogService(timeLogRepo, taskRepo, evaluator, auditService)

	s.router = NewRouter(Handlers{
		Auth:     handlers.NewAuthHandler(accountService, resetService, tokens, log),
		Users:    handlers.NewUserHandler(userService, log),
		Teams:    handlers.NewTeamHandler(teamService, log),
		Projects: handlers.NewProjectHandler(projectService, log),
		Tasks:    handlers.NewTaskHandler(taskService, log),
		Comments: handlers.NewCommentHandler(commentService, log),
		Files:    handlers.NewFileHandler(fileService, log),
		TimeLogs: handlers.NewTimeLogHandler(timeLogService, log),
		Audit:    handlers.NewAuditHandler(auditService, log),
	}, handlers.RequireAuth(tokens, accountService, log), metrics, log)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// openTokenStore connects to Redis. Outside production an unreachable
// Redis falls back to an in-process store.
func openTokenStore(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Store, error) {
	redisStore, err := cache.NewRedisStore(ctx, cfg.Redis)
	if err == nil {
		return redisStore, nil
	}
	if cfg.IsProduction() {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Warn("redis unavailable, reset tokens are kept in memory", logger.Err(err))
	return cache.NewMemoryStore(), nil
}

type closingNotifier struct {
	*mail.QueueNotifier
	backend mq.Backend
}

func (n closingNotifier) Close() error {
	return n.backend.Close()
}

func openNotifier(ctx context.Context, cfg config.MQConfig, log *slog.Logger) (services.Notifier, error) {
	backend, err := mq.Open(ctx, cfg)
	if errors.Is(err, mq.ErrDisabled) {
		log.Info("mail queue disabled, notifications are logged")
		return mail.NewLogNotifier(log), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open message queue: %w", err)
	}
	return closingNotifier{QueueNotifier: mail.NewQueueNotifier(backend, cfg.MailChannel), backend: backend}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.log.Warn("failed to release resource", logger.Err(err))
		}
	}
	s.closers = nil
}
