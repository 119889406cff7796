package repo

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
)

// MemoryStore is an in-memory company directory.
type MemoryStore struct {
	mu        sync.RWMutex
	companies map[uuid.UUID]service.Company
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{companies: make(map[uuid.UUID]service.Company)}
}

func (m *MemoryStore) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]service.Company, 0, len(m.companies))
	for _, c := range m.companies {
		if opts.Active != nil && c.Active != *opts.Active {
			continue
		}
		all = append(all, clone(c))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name == all[j].Name {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].Name < all[j].Name
	})

	page, size := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	total := len(all)
	return service.ListResult{
		Companies:  all[start:end],
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: (total + size - 1) / size,
	}, nil
}

func (m *MemoryStore) Create(ctx context.Context, c service.Company) (service.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.companies {
		if existing.DatabaseName == c.DatabaseName || existing.SchemaName == c.SchemaName {
			return service.Company{}, apperr.ErrAlreadyExists
		}
	}
	m.companies[c.ID] = clone(c)
	return clone(c), nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (service.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.companies[id]
	if !ok {
		return service.Company{}, service.ErrNotFound
	}
	return clone(c), nil
}

func (m *MemoryStore) Mutate(ctx context.Context, id uuid.UUID, fn func(*service.Company) error) (service.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.companies[id]
	if !ok {
		return service.Company{}, service.ErrNotFound
	}
	next := clone(current)
	if err := fn(&next); err != nil {
		return service.Company{}, err
	}
	m.companies[id] = clone(next)
	return next, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) (service.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.companies[id]
	if !ok {
		return service.Company{}, service.ErrNotFound
	}
	delete(m.companies, id)
	return c, nil
}

// clone deep-copies the nested definition slices through JSON, the same shape Postgres stores.
func clone(c service.Company) service.Company {
	raw, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}
	var out service.Company
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	out.SchemaName = c.SchemaName
	return out
}

var _ service.Repository = (*MemoryStore)(nil)
