//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/taskdash/apiserver/config"
	"github.com/taskdash/apiserver/internal/db"
	"github.com/taskdash/apiserver/internal/logger"
	"github.com/taskdash/apiserver/internal/server"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		shutdown(srv)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	shutdown(srv)
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestTeamScopedTaskAccess(t *testing.T) {
	suffix := time.Now().UnixNano()

	admin := registerUser(t, fmt.Sprintf("admin_%d", suffix))
	if err := setRole(admin.User.Username, "admin"); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	manager := registerUser(t, fmt.Sprintf("manager_%d", suffix))
	dev := registerUser(t, fmt.Sprintf("dev_%d", suffix))
	outsider := registerUser(t, fmt.Sprintf("outsider_%d", suffix))

	var promoted userResponse
	doJSON(t, http.MethodPatch, fmt.Sprintf("/users/%d/role", manager.User.ID), admin.Tokens.Access,
		map[string]any{"role": "manager"}, http.StatusOK, &promoted)
	if promoted.Role != "manager" {
		t.Fatalf("unexpected role after promotion: %q", promoted.Role)
	}

	var team teamResponse
	doJSON(t, http.MethodPost, "/teams/", admin.Tokens.Access,
		map[string]any{"name": fmt.Sprintf("team_%d", suffix), "manager_id": manager.User.ID},
		http.StatusCreated, &team)
	if team.ID == 0 {
		t.Fatalf("expected team ID to be set")
	}

	var assigned userResponse
	doJSON(t, http.MethodPatch, fmt.Sprintf("/users/%d/team", dev.User.ID), admin.Tokens.Access,
		map[string]any{"team_id": team.ID}, http.StatusOK, &assigned)
	if assigned.TeamID == nil || *assigned.TeamID != team.ID {
		t.Fatalf("developer not assigned to team %d", team.ID)
	}

	var project projectResponse
	doJSON(t, http.MethodPost, "/projects/", admin.Tokens.Access,
		map[string]any{"name": "Roadmap", "description": "quarterly plan", "start_date": "2026-01-01"},
		http.StatusCreated, &project)

	var task taskResponse
	doJSON(t, http.MethodPost, "/tasks/", admin.Tokens.Access,
		map[string]any{"project_id": project.ID, "title": "Write docs", "assigned_to": dev.User.ID},
		http.StatusCreated, &task)
	if task.Status != "todo" {
		t.Fatalf("unexpected default status: %q", task.Status)
	}

	taskPath := fmt.Sprintf("/tasks/%d/", task.ID)
	doJSON(t, http.MethodGet, taskPath, dev.Tokens.Access, nil, http.StatusOK, nil)
	doJSON(t, http.MethodGet, taskPath, manager.Tokens.Access, nil, http.StatusOK, nil)
	doJSON(t, http.MethodGet, taskPath, outsider.Tokens.Access, nil, http.StatusForbidden, nil)

	var managed struct {
		Teams   []teamResponse `json:"teams"`
		Members []userResponse `json:"members"`
	}
	doJSON(t, http.MethodGet, "/teams/managed", manager.Tokens.Access, nil, http.StatusOK, &managed)
	if len(managed.Teams) != 1 || managed.Teams[0].ID != team.ID {
		t.Fatalf("unexpected managed teams: %+v", managed.Teams)
	}
	if len(managed.Members) != 1 || managed.Members[0].ID != dev.User.ID {
		t.Fatalf("unexpected team members: %+v", managed.Members)
	}

	var listed listResponse[taskResponse]
	doJSON(t, http.MethodGet, "/tasks/", outsider.Tokens.Access, nil, http.StatusOK, &listed)
	for _, item := range listed.Items {
		if item.ID == task.ID {
			t.Fatalf("outsider can list task %d", task.ID)
		}
	}

	doJSON(t, http.MethodPut, taskPath, dev.Tokens.Access,
		map[string]any{"project_id": project.ID, "title": "Write docs", "assigned_to": dev.User.ID, "status": "in_progress"},
		http.StatusOK, &task)
	if task.Status != "in_progress" {
		t.Fatalf("unexpected status after update: %q", task.Status)
	}

	var comment idResponse
	doJSON(t, http.MethodPost, "/comments/", dev.Tokens.Access,
		map[string]any{"task_id": task.ID, "content": "first draft pushed"}, http.StatusCreated, &comment)
	var timeLog idResponse
	doJSON(t, http.MethodPost, "/timelogs/", dev.Tokens.Access,
		map[string]any{"task_id": task.ID, "hours": 1.5, "description": "outline"}, http.StatusCreated, &timeLog)
	file := uploadFile(t, dev.Tokens.Access, task.ID, "notes.txt", "hello")

	created := map[string]int{
		"/projects/": project.ID,
		"/comments/": comment.ID,
		"/files/":    file.ID,
		"/timelogs/": timeLog.ID,
	}
	for path, id := range created {
		for _, actor := range []authResponse{manager, dev} {
			listed := listReadable(t, actor.Tokens.Access, path)
			if !containsID(listed, id) {
				t.Fatalf("%s: %s does not list %d", path, actor.User.Username, id)
			}
		}
		if containsID(listReadable(t, outsider.Tokens.Access, path), id) {
			t.Fatalf("%s: outsider lists %d", path, id)
		}
		doJSON(t, http.MethodGet, fmt.Sprintf("%s%d/", path, id), outsider.Tokens.Access, nil, http.StatusForbidden, nil)
	}

	doJSON(t, http.MethodPatch, fmt.Sprintf("/users/%d/role", dev.User.ID), manager.Tokens.Access,
		map[string]any{"role": "admin"}, http.StatusForbidden, nil)

	var audit listResponse[json.RawMessage]
	doJSON(t, http.MethodGet, "/audit-logs/", admin.Tokens.Access, nil, http.StatusOK, &audit)
	if audit.Total == 0 {
		t.Fatalf("expected audit entries after mutations")
	}
	doJSON(t, http.MethodGet, "/audit-logs/", manager.Tokens.Access, nil, http.StatusForbidden, nil)

	doJSON(t, http.MethodDelete, fmt.Sprintf("/projects/%d/", project.ID), admin.Tokens.Access, nil, http.StatusNoContent, nil)
	doJSON(t, http.MethodGet, taskPath, admin.Tokens.Access, nil, http.StatusNotFound, nil)
}

func TestPasswordResetFlow(t *testing.T) {
	user := registerUser(t, fmt.Sprintf("reset_%d", time.Now().UnixNano()))

	var known, unknown messageResponse
	doJSON(t, http.MethodPost, "/auth/password-reset", "",
		map[string]any{"email": user.User.Email}, http.StatusOK, &known)
	doJSON(t, http.MethodPost, "/auth/password-reset", "",
		map[string]any{"email": "nobody@example.com"}, http.StatusOK, &unknown)
	if known.Message != unknown.Message {
		t.Fatalf("reset responses differ: %q vs %q", known.Message, unknown.Message)
	}

	doJSON(t, http.MethodPost, "/auth/password-reset/confirm", "",
		map[string]any{"token": "not-a-token", "new_password": "Another-pass-42", "confirm_password": "Another-pass-42"},
		http.StatusBadRequest, nil)

	doJSON(t, http.MethodPost, "/auth/login", "",
		map[string]any{"username": user.User.Username, "password": testPassword}, http.StatusOK, nil)
}

func TestEmailUniquenessIgnoresCase(t *testing.T) {
	username := fmt.Sprintf("casing_%d", time.Now().UnixNano())
	user := registerUser(t, username)

	doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username + "_2",
		"email":    strings.ToUpper(user.User.Email),
		"password": testPassword,
	}, http.StatusConflict, nil)
}

const testPassword = "Testpass-123!"

type userResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TeamID   *int   `json:"team_id"`
}

type authResponse struct {
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	User userResponse `json:"user"`
}

type teamResponse struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ManagerID int    `json:"manager_id"`
}

type projectResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	OwnerID int    `json:"owner_id"`
}

type taskResponse struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	AssignedTo *int   `json:"assigned_to"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type idResponse struct {
	ID int `json:"id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func registerUser(t *testing.T, username string) authResponse {
	t.Helper()

	var parsed authResponse
	doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"name":     "Test User",
		"password": testPassword,
	}, http.StatusCreated, &parsed)
	if parsed.Tokens.Access == "" {
		t.Fatalf("missing access token in register response")
	}
	return parsed
}

// listReadable lists path as the token's user and checks that every listed
// record can also be fetched by id.
func listReadable(t *testing.T, token, path string) []int {
	t.Helper()

	var listed listResponse[idResponse]
	doJSON(t, http.MethodGet, path+"?limit=100", token, nil, http.StatusOK, &listed)
	ids := make([]int, 0, len(listed.Items))
	for _, item := range listed.Items {
		doJSON(t, http.MethodGet, fmt.Sprintf("%s%d/", path, item.ID), token, nil, http.StatusOK, nil)
		ids = append(ids, item.ID)
	}
	return ids
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func uploadFile(t *testing.T, token string, taskID int, name, content string) idResponse {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("task", strconv.Itoa(taskID)); err != nil {
		t.Fatalf("write task field: %v", err)
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/files/", &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload file: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var parsed idResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return parsed
}

// doJSON sends payload to path and fails the test unless the response
// status equals want. A non-nil out receives the decoded body.
func doJSON(t *testing.T, method, path, token string, payload any, want int, out any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, want, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
}

func setRole(username, role string) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := conn.Exec(`UPDATE users SET role = $1 WHERE username = $2`, role, username)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("user %q not found", username)
	}
	return nil
}

func openDB() (*sql.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return sql.Open("postgres", db.PostgresURL(cfg.Database))
}

func waitForPostgres(ctx context.Context) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setTestEnv() {
	_ = os.Setenv("ENV", "test")
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "taskdash")
	_ = os.Setenv("DB_PASSWORD", "taskdash")
	_ = os.Setenv("DB_NAME", "taskdash")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("REDIS_ADDR", "localhost:6379")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "taskdash")
	_ = os.Setenv("MQ_BACKEND", "none")
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	srv, err := server.New(ctx, cfg, logger.Discard())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func shutdown(srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
