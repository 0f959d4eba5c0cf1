package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/taskdash/apiserver/internal/cache"
	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

const (
	ResetTokenLength = 32
	ResetTokenTTL    = time.Hour

	resetKeyPrefix     = "password_reset:"
	resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	resetSubject       = "Password reset"
)

// Results reported to a ResetObserver.
const (
	ResetResultSent     = "sent"
	ResetResultUnknown  = "unknown_email"
	ResetResultFailed   = "failed"
	ResetResultOK       = "ok"
	ResetResultInvalid  = "invalid_token"
	ResetResultRejected = "rejected"
)

// Operations reported to a ResetObserver.
const (
	ResetOperationRequest = "request"
	ResetOperationConfirm = "confirm"
)

// Notifier delivers a message to an email address.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// ResetUserRepository is the user storage used by the reset flow.
type ResetUserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

// ResetObserver is told the outcome of every request and confirm call.
type ResetObserver func(operation, result string)

// PasswordResetService issues single-use reset tokens and redeems them.
type PasswordResetService struct {
	users       ResetUserRepository
	tokens      cache.Store
	notifier    Notifier
	audit       Auditor
	frontendURL string
	exposeURL   bool
	log         *slog.Logger
	observe     ResetObserver
}

// PasswordResetOption configures a PasswordResetService.
type PasswordResetOption func(*PasswordResetService)

// WithResetURLLogging logs every generated reset URL. Only meant for
// non-production environments.
func WithResetURLLogging(enabled bool) PasswordResetOption {
	return func(s *PasswordResetService) {
		s.exposeURL = enabled
	}
}

func WithResetObserver(fn ResetObserver) PasswordResetOption {
	return func(s *PasswordResetService) {
		s.observe = fn
	}
}

func WithResetAuditor(a Auditor) PasswordResetOption {
	return func(s *PasswordResetService) {
		s.audit = auditorOrNop(a)
	}
}

func NewPasswordResetService(
	users ResetUserRepository,
	tokens cache.Store,
	notifier Notifier,
	frontendURL string,
	log *slog.Logger,
	opts ...PasswordResetOption,
) *PasswordResetService {
	s := &PasswordResetService{
		users:       users,
		tokens:      tokens,
		notifier:    notifier,
		audit:       nopAuditor{},
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
		observe:     func(string, string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestReset starts a reset for the account registered under email. The
// result is the same whether or not such an account exists. Storage and
// delivery failures are logged and not returned.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.observe(ResetOperationRequest, ResetResultUnknown)
			return nil
		}
		s.log.Error("password reset: user lookup failed", logger.Err(err))
		s.observe(ResetOperationRequest, ResetResultFailed)
		return nil
	}

	token, err := newResetToken()
	if err != nil {
		s.log.Error("password reset: token generation failed", logger.Err(err))
		s.observe(ResetOperationRequest, ResetResultFailed)
		return nil
	}
	if err := s.tokens.Set(ctx, resetKeyPrefix+token, strconv.Itoa(user.ID), ResetTokenTTL); err != nil {
		s.log.Error("password reset: token store failed", logger.Err(err), slog.Int("user_id", user.ID))
		s.observe(ResetOperationRequest, ResetResultFailed)
		return nil
	}

	resetURL := s.frontendURL + "/reset-password?token=" + token
	if s.exposeURL {
		s.log.Info("password reset link issued", slog.Int("user_id", user.ID), slog.String("url", resetURL))
	}

	if err := s.notifier.Notify(ctx, user.Email, resetSubject, resetBody(user, resetURL)); err != nil {
		s.log.Warn("password reset: delivery failed", logger.Err(err), slog.Int("user_id", user.ID))
		s.observe(ResetOperationRequest, ResetResultFailed)
		return nil
	}
	s.observe(ResetOperationRequest, ResetResultSent)
	return nil
}

// ConfirmReset sets a new password for the user bound to token. The token
// is claimed atomically, so concurrent calls with the same token succeed at
// most once.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, token, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		s.observe(ResetOperationConfirm, ResetResultRejected)
		return ErrPasswordMismatch
	}
	if len(newPassword) < MinPasswordLength {
		s.observe(ResetOperationConfirm, ResetResultRejected)
		return ErrWeakPassword
	}
	token = strings.TrimSpace(token)
	if token == "" {
		s.observe(ResetOperationConfirm, ResetResultInvalid)
		return ErrInvalidToken
	}

	raw, err := s.tokens.Claim(ctx, resetKeyPrefix+token)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			s.observe(ResetOperationConfirm, ResetResultInvalid)
			return ErrInvalidToken
		}
		s.observe(ResetOperationConfirm, ResetResultFailed)
		return fmt.Errorf("claim reset token: %w", err)
	}
	userID, err := strconv.Atoi(raw)
	if err != nil {
		s.observe(ResetOperationConfirm, ResetResultInvalid)
		return ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.observe(ResetOperationConfirm, ResetResultInvalid)
			return ErrInvalidToken
		}
		return s.claimedResetFailed(userID, err)
	}

	hashed, err := hashPassword(newPassword)
	if err != nil {
		return s.claimedResetFailed(user.ID, err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.observe(ResetOperationConfirm, ResetResultInvalid)
			return ErrInvalidToken
		}
		return s.claimedResetFailed(user.ID, err)
	}

	s.audit.Record(ctx, user, auditEntry(types.AuditUpdate, "user", user.ID, user.Username, map[string]any{
		"password": "reset",
	}))
	s.observe(ResetOperationConfirm, ResetResultOK)
	return nil
}

// claimedResetFailed reports a failure that happened after the token was
// consumed. The user has to request a new link.
func (s *PasswordResetService) claimedResetFailed(userID int, err error) error {
	s.log.Error("password reset failed after token was claimed",
		slog.Int("user_id", userID),
		logger.Err(err),
	)
	s.observe(ResetOperationConfirm, ResetResultFailed)
	return err
}

func newResetToken() (string, error) {
	max := big.NewInt(int64(len(resetTokenAlphabet)))
	buf := make([]byte, ResetTokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = resetTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func resetBody(user types.User, resetURL string) string {
	name := user.Name
	if name == "" {
		name = user.Username
	}
	return fmt.Sprintf(
		"Hello %s,\n\nA password reset was requested for your account. Open the link below to choose a new password:\n\n%s\n\nThe link expires in 1 hour. If you did not request a reset, ignore this message.\n",
		name, resetURL,
	)
}
