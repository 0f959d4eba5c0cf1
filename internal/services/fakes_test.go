package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

// memoryUsers is an in-memory UserRepository that also serves as the
// authorization directory.
type memoryUsers struct {
	mu    sync.Mutex
	users map[int]types.User
	teams map[int]types.Team
	next  int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		users: make(map[int]types.User),
		teams: make(map[int]types.Team),
		next:  100,
	}
}

func (m *memoryUsers) put(user types.User) types.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return user
}

func (m *memoryUsers) putTeam(team types.Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[team.ID] = team
}

func (m *memoryUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) find(match func(types.User) bool) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
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

func (m *memoryUsers) sorted(match func(types.User) bool) []types.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.User
	for _, user := range m.users {
		if match(user) {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryUsers) List(_ context.Context, f store.UserFilter, offset, limit int) ([]types.User, int, error) {
	users := m.sorted(func(u types.User) bool {
		if f.Role != nil && u.Role != *f.Role {
			return false
		}
		if f.IDs != nil && !containsID(f.IDs, u.ID) {
			return false
		}
		return true
	})
	total := len(users)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return users[offset:end], total, nil
}

func (m *memoryUsers) ListByRole(_ context.Context, role types.Role) ([]types.User, error) {
	return m.sorted(func(u types.User) bool { return u.Role == role }), nil
}

func (m *memoryUsers) ListUsersByTeams(_ context.Context, teamIDs []int) ([]types.User, error) {
	return m.sorted(func(u types.User) bool { return u.TeamID != nil && containsID(teamIDs, *u.TeamID) }), nil
}

func (m *memoryUsers) ListUsersByIDs(_ context.Context, ids []int) ([]types.User, error) {
	return m.sorted(func(u types.User) bool { return containsID(ids, u.ID) }), nil
}

func (m *memoryUsers) ListTeamsByManager(_ context.Context, managerID int) ([]types.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Team
	for _, team := range m.teams {
		if team.ManagerID == managerID {
			out = append(out, team)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryUsers) Get(_ context.Context, id int) (types.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[id]
	if !ok {
		return types.Team{}, store.ErrNotFound
	}
	return team, nil
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username || strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	m.next++
	user.ID = m.next
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) Update(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	m.users[id] = user
	return nil
}

func (m *memoryUsers) remove(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func containsID(ids []int, id int) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// memoryTasks keeps tasks and projects in memory and applies scopes with
// Scope.Permits.
type memoryTasks struct {
	mu       sync.Mutex
	tasks    map[int]types.Task
	projects map[int]types.Project
	next     int
}

func newMemoryTasks() *memoryTasks {
	return &memoryTasks{
		tasks:    make(map[int]types.Task),
		projects: make(map[int]types.Project),
		next:     500,
	}
}

func (m *memoryTasks) List(_ context.Context, scope authz.Scope, f store.TaskFilter, offset, limit int) ([]types.Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Task
	for _, task := range m.tasks {
		if f.ProjectID != nil && task.ProjectID != *f.ProjectID {
			continue
		}
		if scope.Permits(task.Parties()) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryTasks) Get(_ context.Context, id int) (types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (m *memoryTasks) Create(_ context.Context, task types.Task) (types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	task.ID = m.next
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memoryTasks) Update(_ context.Context, task types.Task) (types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return types.Task{}, store.ErrNotFound
	}
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memoryTasks) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memoryTasks) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// projectGetter exposes the projects of a memoryTasks.
type projectGetter struct{ m *memoryTasks }

func (p projectGetter) Get(_ context.Context, id int) (types.Project, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	project, ok := p.m.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return project, nil
}

type passthroughTx struct{ calls int }

func (tx *passthroughTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.calls++
	return fn(ctx)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []types.AuditLog
}

func (a *recordingAuditor) Record(_ context.Context, actor types.User, entry types.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if actor.ID != 0 {
		id := actor.ID
		entry.UserID = &id
	}
	a.entries = append(a.entries, entry)
}

func intPtr(v int) *int { return &v }

// fixture:
//
//	admin 1; manager 2 manages team 10; manager 3 manages team 11
//	developers 4 and 5 in team 10, developer 6 in team 11, developer 7 teamless
func newDirectory() *memoryUsers {
	users := newMemoryUsers()
	users.put(types.User{ID: 1, Username: "root", Email: "root@example.com", Role: types.RoleAdmin, IsActive: true})
	users.put(types.User{ID: 2, Username: "mara", Email: "mara@example.com", Role: types.RoleManager, IsActive: true})
	users.put(types.User{ID: 3, Username: "milo", Email: "milo@example.com", Role: types.RoleManager, IsActive: true})
	users.put(types.User{ID: 4, Username: "dana", Email: "dana@example.com", Role: types.RoleDeveloper, TeamID: intPtr(10), IsActive: true})
	users.put(types.User{ID: 5, Username: "dave", Email: "dave@example.com", Role: types.RoleDeveloper, TeamID: intPtr(10), IsActive: true})
	users.put(types.User{ID: 6, Username: "erin", Email: "erin@example.com", Role: types.RoleDeveloper, TeamID: intPtr(11), IsActive: true})
	users.put(types.User{ID: 7, Username: "solo", Email: "solo@example.com", Role: types.RoleDeveloper, IsActive: true})
	users.putTeam(types.Team{ID: 10, Name: "alpha", ManagerID: 2})
	users.putTeam(types.Team{ID: 11, Name: "beta", ManagerID: 3})
	return users
}

func mustUser(users *memoryUsers, id int) types.User {
	user, err := users.GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return user
}
