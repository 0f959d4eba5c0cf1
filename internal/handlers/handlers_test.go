package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdash/apiserver/config"
	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/cache"
	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/internal/services"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

type memoryUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{nextID: 1, byID: map[int]types.User{}}
}

func (m *memoryUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) find(match func(types.User) bool) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byID {
		if match(user) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	return m.find(func(u types.User) bool { return u.Username == username })
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	return m.find(func(u types.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *memoryUsers) List(context.Context, store.UserFilter, int, int) ([]types.User, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (m *memoryUsers) ListByRole(context.Context, types.Role) ([]types.User, error) {
	return nil, errors.New("not implemented")
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Username == user.Username || strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.byID[user.ID] = user
	return user, nil
}

func (m *memoryUsers) Update(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[user.ID] = user
	return user, nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id int, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = hash
	m.byID[id] = user
	return nil
}

type outbox struct {
	mu   sync.Mutex
	sent []string
}

func (o *outbox) Notify(_ context.Context, _, _, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, body)
	return nil
}

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	body := o.sent[len(o.sent)-1]
	idx := strings.Index(body, "http")
	require.GreaterOrEqual(t, idx, 0, body)
	link := strings.Fields(body[idx:])[0]
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

type authFixture struct {
	router http.Handler
	users  *memoryUsers
	outbox *outbox
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	log := logger.Discard()
	users := newMemoryUsers()
	mailbox := &outbox{}
	tokens, err := NewTokenIssuer(config.JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	accounts := services.NewAccountService(users, nil)
	resets := services.NewPasswordResetService(users, cache.NewMemoryStore(), mailbox, "http://app.local", log)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(accounts, resets, tokens, log), RequireAuth(tokens, accounts, log))
	})
	return authFixture{router: router, users: users, outbox: mailbox}
}

func (f authFixture) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginRefresh(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.post(t, "/auth/register", map[string]string{
		"username": "carol",
		"email":    "carol@example.com",
		"name":     "Carol",
		"password": "password123",
		"role":     "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var registered AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, types.RoleDeveloper, registered.User.Role)

	rec = f.post(t, "/auth/register", map[string]string{
		"username": "carol",
		"email":    "other@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.post(t, "/auth/login", map[string]string{"username": "carol", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.post(t, "/auth/login", map[string]string{"username": "carol", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Tokens.Refresh)

	rec = f.post(t, "/auth/refresh", map[string]string{"refresh": login.Tokens.Refresh})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.post(t, "/auth/refresh", map[string]string{"refresh": login.Tokens.Access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.post(t, "/auth/register", map[string]string{"username": "dave", "email": "not-an-email", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"must be a valid email address","field":"email"}`, rec.Body.String())

	rec = f.post(t, "/auth/register", map[string]string{"username": "dave", "email": "dave@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 8")
}

func TestPasswordResetEndpoints(t *testing.T) {
	f := newAuthFixture(t)
	rec := f.post(t, "/auth/register", map[string]string{
		"username": "erin",
		"email":    "erin@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	known := f.post(t, "/auth/password-reset", map[string]string{"email": "erin@example.com"})
	unknown := f.post(t, "/auth/password-reset", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	token := f.outbox.lastToken(t)
	assert.Len(t, token, services.ResetTokenLength)

	rec = f.post(t, "/auth/password-reset/confirm", map[string]string{
		"token": token, "new_password": "newpassword1", "confirm_password": "different1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "do not match")

	rec = f.post(t, "/auth/password-reset/confirm", map[string]string{
		"token": token, "new_password": "newpassword1", "confirm_password": "newpassword1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.post(t, "/auth/password-reset/confirm", map[string]string{
		"token": token, "new_password": "newpassword2", "confirm_password": "newpassword2",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid or expired reset token"}`, rec.Body.String())

	rec = f.post(t, "/auth/login", map[string]string{"username": "erin", "password": "newpassword1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"permission", fmt.Errorf("update: %w", authz.ErrPermissionDenied), http.StatusForbidden, `{"error":"permission denied"}`},
		{"not found", store.ErrNotFound, http.StatusNotFound, `{"error":"not found"}`},
		{"conflict", store.ErrConflict, http.StatusConflict, `{"error":"already exists"}`},
		{"validation", &services.ValidationError{Field: "role", Message: "unknown role"}, http.StatusBadRequest, `{"error":"unknown role","field":"role"}`},
		{"weak password", services.ErrWeakPassword, http.StatusBadRequest, `{"error":"password must be at least 8 characters"}`},
		{"invalid token", services.ErrInvalidToken, http.StatusBadRequest, `{"error":"invalid or expired reset token"}`},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, `{"error":"invalid credentials"}`},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, `{"error":"failed to do thing"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			writeServiceError(rec, req, logger.Discard(), tt.err, "failed to do thing")

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query   string
		page    int
		limit   int
		offset  int
		wantErr bool
	}{
		{query: "", page: 1, limit: 20, offset: 0},
		{query: "page=3&limit=10", page: 3, limit: 10, offset: 20},
		{query: "page=2&per_page=5", page: 2, limit: 5, offset: 5},
		{query: "limit=1000", page: 1, limit: 100, offset: 0},
		{query: "page=0", wantErr: true},
		{query: "limit=abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)

			p, err := parsePagination(req)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.page, p.page)
			assert.Equal(t, tt.limit, p.limit)
			assert.Equal(t, tt.offset, p.services().Offset)
		})
	}
}

func TestDateUnmarshal(t *testing.T) {
	var req ProjectRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","start_date":"2025-03-01","end_date":null}`), &req))

	in := req.input()
	require.NotNil(t, in.StartDate)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *in.StartDate)
	assert.Nil(t, in.EndDate)

	assert.Error(t, json.Unmarshal([]byte(`{"start_date":"March 1"}`), &req))
}

func TestTokenIssuer(t *testing.T) {
	_, err := NewTokenIssuer(config.JWTConfig{})
	assert.Error(t, err)

	issuer, err := NewTokenIssuer(config.JWTConfig{Secret: "s", AccessTTL: time.Minute})
	require.NoError(t, err)
	now := time.Now()
	issuer.now = func() time.Time { return now }

	pair, err := issuer.Issue(7)
	require.NoError(t, err)

	id, err := issuer.Parse(pair.Access, tokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	_, err = issuer.Parse(pair.Access, tokenTypeRefresh)
	assert.Error(t, err)

	issuer.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = issuer.Parse(pair.Access, tokenTypeAccess)
	assert.Error(t, err)
	_, err = issuer.Parse(pair.Refresh, tokenTypeRefresh)
	assert.NoError(t, err)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "10.0.0.1", clientIP("10.0.0.1:5555"))
	assert.Equal(t, "::1", clientIP("[::1]:80"))
	assert.Equal(t, "192.168.1.9", clientIP("192.168.1.9"))
	assert.Equal(t, "", clientIP("garbage"))
}
