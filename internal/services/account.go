package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, f store.UserFilter, offset, limit int) ([]types.User, int, error)
	ListByRole(ctx context.Context, role types.Role) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

// NewAccount holds the fields needed to create a user.
type NewAccount struct {
	Username string
	Email    string
	Name     string
	Password string
}

func (a *NewAccount) normalize() error {
	a.Username = strings.TrimSpace(a.Username)
	a.Email = strings.TrimSpace(a.Email)
	a.Name = strings.TrimSpace(a.Name)
	if a.Username == "" {
		return invalid("username", "is required")
	}
	if _, err := mail.ParseAddress(a.Email); err != nil || a.Email == "" {
		return invalid("email", "must be a valid email address")
	}
	if len(a.Password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// AccountService covers registration, login and account lookup.
type AccountService struct {
	users UserRepository
	audit Auditor
}

func NewAccountService(users UserRepository, audit Auditor) *AccountService {
	return &AccountService{users: users, audit: auditorOrNop(audit)}
}

// Register creates a developer account. Elevated roles are granted only
// by admins or the createuser command.
func (s *AccountService) Register(ctx context.Context, account NewAccount) (types.User, error) {
	user, err := s.create(ctx, account, types.RoleDeveloper)
	if err != nil {
		return types.User{}, err
	}
	s.audit.Record(ctx, user, auditEntry(types.AuditCreate, "user", user.ID, user.Username, nil))
	return user, nil
}

// CreateWithRole creates an account holding role.
func (s *AccountService) CreateWithRole(ctx context.Context, account NewAccount, role types.Role) (types.User, error) {
	if !role.Valid() {
		return types.User{}, invalid("role", types.ErrInvalidRole.Error())
	}
	return s.create(ctx, account, role)
}

func (s *AccountService) create(ctx context.Context, account NewAccount, role types.Role) (types.User, error) {
	if err := account.normalize(); err != nil {
		return types.User{}, err
	}

	hashed, err := hashPassword(account.Password)
	if err != nil {
		return types.User{}, err
	}

	return s.users.Create(ctx, types.User{
		Username:     account.Username,
		Email:        account.Email,
		Name:         account.Name,
		Role:         role,
		IsActive:     true,
		PasswordHash: hashed,
	})
}

// Authenticate verifies credentials and returns the matching active user.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID returns a user without any access check. It backs token
// authentication.
func (s *AccountService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
