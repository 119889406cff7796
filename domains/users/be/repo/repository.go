package repo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/platform/go/persistence"
)

// Repository defines the persistence operations required by the users service.
type Repository interface {
	Create(ctx context.Context, user persistence.User) (persistence.User, error)
	List(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.User, error)
	GetByEmail(ctx context.Context, email string) (persistence.User, error)
	Update(ctx context.Context, user persistence.User) (persistence.User, error)
	Delete(ctx context.Context, id uuid.UUID) (persistence.User, error)
}

type postgresRepository struct {
	store *persistence.UserStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.UserStore) Repository {
	if store == nil {
		panic("user store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, user persistence.User) (persistence.User, error) {
	return r.store.CreateUser(ctx, user)
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error) {
	return r.store.ListUsers(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.User, error) {
	return r.store.GetUser(ctx, id)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.store.GetUserByEmail(ctx, email)
}

func (r *postgresRepository) Update(ctx context.Context, user persistence.User) (persistence.User, error) {
	return r.store.UpdateUser(ctx, user)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) (persistence.User, error) {
	return r.store.DeleteUser(ctx, id)
}

// MemoryStore is an in-memory Repository used by tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]persistence.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uuid.UUID]persistence.User)}
}

func (m *MemoryStore) Create(ctx context.Context, user persistence.User) (persistence.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return persistence.User{}, persistence.ErrUserConflict
		}
	}
	m.users[user.UserID] = cloneUser(user)
	return cloneUser(user), nil
}

func (m *MemoryStore) List(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]persistence.User, 0)
	for _, u := range m.users {
		if params.CompanyID != nil && u.CompanyID != *params.CompanyID {
			continue
		}
		if params.Email != nil && !strings.Contains(u.Email, strings.ToLower(strings.TrimSpace(*params.Email))) {
			continue
		}
		matched = append(matched, cloneUser(u))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UserName < matched[j].UserName })

	page, size := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))
	return persistence.ListUsersResult{Users: matched[start:end], TotalItems: len(matched)}, nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (persistence.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (persistence.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return persistence.User{}, persistence.ErrUserNotFound
}

func (m *MemoryStore) Update(ctx context.Context, user persistence.User) (persistence.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.users[user.UserID]
	if !ok {
		return persistence.User{}, persistence.ErrUserNotFound
	}
	current.UserName = user.UserName
	current.PasswordHash = user.PasswordHash
	current.Customers = user.Customers
	current.Workers = user.Workers
	current.Roles = user.Roles
	current.Active = user.Active
	current.UpdatedBy = user.UpdatedBy
	current.UpdatedAt = user.UpdatedAt
	m.users[user.UserID] = cloneUser(current)
	return cloneUser(current), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) (persistence.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrUserNotFound
	}
	delete(m.users, id)
	return u, nil
}

func cloneUser(u persistence.User) persistence.User {
	u.Customers = append([]string{}, u.Customers...)
	u.Workers = append([]string{}, u.Workers...)
	u.Roles = append([]string{}, u.Roles...)
	return u
}

var _ Repository = (*MemoryStore)(nil)
