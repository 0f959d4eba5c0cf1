package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdash/apiserver/internal/services"
	"github.com/taskdash/apiserver/types"
)

// AuthHandler provides registration, login and password reset endpoints.
type AuthHandler struct {
	accounts *services.AccountService
	resets   *services.PasswordResetService
	tokens   *TokenIssuer
	log      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(
	accounts *services.AccountService,
	resets *services.PasswordResetService,
	tokens *TokenIssuer,
	log *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		resets:   resets,
		tokens:   tokens,
		log:      log,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler, requireAuth func(http.Handler) http.Handler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/password-reset", h.RequestPasswordReset)
	r.Post("/password-reset/confirm", h.ConfirmPasswordReset)
	r.With(requireAuth).Get("/me", h.Me)
}

// Register creates a developer account and returns a token pair.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.Register(r.Context(), services.NewAccount{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create user")
		return
	}

	tokens, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create token")
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Tokens: tokens, User: user})
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to authenticate")
		return
	}

	tokens, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create token")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Tokens: tokens, User: user})
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, err := h.tokens.Parse(req.Refresh, tokenTypeRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	user, err := h.accounts.GetByID(r.Context(), userID)
	if err != nil || !user.IsActive {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	access, err := h.tokens.Access(user.ID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create token")
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Access: access})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, actor)
}

// RequestPasswordReset always answers with the same message so that the
// response does not reveal whether the email is registered.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.resets.RequestReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, h.log, err, "failed to request password reset")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "If an account with that email exists, a password reset link has been sent.",
	})
}

// ConfirmPasswordReset redeems a reset token.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.resets.ConfirmReset(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		writeServiceError(w, r, h.log, err, "failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset successfully."})
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=255"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required"`
}

// PasswordResetConfirmRequest is validated by the service so that the
// password checks run in their defined order.
type PasswordResetConfirmRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type AuthResponse struct {
	Tokens TokenPair  `json:"tokens"`
	User   types.User `json:"user"`
}

type RefreshResponse struct {
	Access string `json:"access"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func requireActor(w http.ResponseWriter, r *http.Request) (types.User, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.User{}, false
	}
	return actor, true
}
