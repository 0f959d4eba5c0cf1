package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/internal/services"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

type contextKey string

const contextActorKey contextKey = "actor"

// ActorLoader resolves the user behind a verified token.
type ActorLoader interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

func withActor(ctx context.Context, actor types.User) context.Context {
	return context.WithValue(ctx, contextActorKey, actor)
}

func actorFromContext(ctx context.Context) (types.User, bool) {
	actor, ok := ctx.Value(contextActorKey).(types.User)
	return actor, ok
}

// RequireAuth verifies the bearer access token, loads the user and stores
// it in the request context. Inactive and deleted users are rejected.
func RequireAuth(tokens *TokenIssuer, users ActorLoader, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			userID, err := tokens.Parse(tokenString, tokenTypeAccess)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			actor, err := users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				log.Error("failed to load actor", slog.Int("user_id", userID), logger.Err(err))
				writeError(w, http.StatusInternalServerError, "failed to load user")
				return
			}
			if !actor.IsActive {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

// RequestMeta records the client address and user agent for audit entries.
// It must run after middleware.RealIP.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestMeta(r.Context(), services.RequestMeta{
			IP:        clientIP(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}

// RequestLogger logs one line per request with its outcome.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				log.LogAttrs(r.Context(), level, "request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
