package repo

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/domains/access/be/tagscope"
	"github.com/harmony-hq/harmony/domains/customers/be/service"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// MemoryStore is an in-memory Repository partitioned by company schema.
type MemoryStore struct {
	mu     sync.RWMutex
	spaces map[string]map[uuid.UUID]service.Customer
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{spaces: make(map[string]map[uuid.UUID]service.Customer)}
}

func (m *MemoryStore) Create(ctx context.Context, customer service.Customer) (service.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Customer{}, err
	}
	if taken(rows, customer) {
		return service.Customer{}, service.ErrDuplicate
	}
	rows[customer.ID] = clone(customer)
	return clone(customer), nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (service.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Customer{}, err
	}
	customer, ok := rows[id]
	if !ok {
		return service.Customer{}, service.ErrNotFound
	}
	return clone(customer), nil
}

func (m *MemoryStore) Update(ctx context.Context, customer service.Customer) (service.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Customer{}, err
	}
	current, ok := rows[customer.ID]
	if !ok {
		return service.Customer{}, service.ErrNotFound
	}
	if taken(rows, customer) {
		return service.Customer{}, service.ErrDuplicate
	}
	customer.CreatedBy = current.CreatedBy
	customer.CreatedAt = current.CreatedAt
	rows[customer.ID] = clone(customer)
	return clone(customer), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) (service.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Customer{}, err
	}
	customer, ok := rows[id]
	if !ok {
		return service.Customer{}, service.ErrNotFound
	}
	delete(rows, id)
	return customer, nil
}

func (m *MemoryStore) List(ctx context.Context, filter service.Filter) ([]service.Customer, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return nil, 0, err
	}
	search := strings.ToLower(filter.Search)
	matched := make([]service.Customer, 0, len(rows))
	for _, c := range rows {
		if filter.Active != nil && c.Active != *filter.Active {
			continue
		}
		if !filter.AllTags && !tagscope.Visible(filter.Tags, c.Tags) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.HasPrefix(strings.ToLower(c.Identification), search) {
			continue
		}
		matched = append(matched, clone(c))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name == matched[j].Name {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].Name < matched[j].Name
	})

	total := len(matched)
	start := min(filter.Skip, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (m *MemoryStore) rows(ctx context.Context) (map[uuid.UUID]service.Customer, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return nil, service.ErrCompanyMissing
	}
	rows, ok := m.spaces[space.SchemaName]
	if !ok {
		rows = make(map[uuid.UUID]service.Customer)
		m.spaces[space.SchemaName] = rows
	}
	return rows, nil
}

func taken(rows map[uuid.UUID]service.Customer, customer service.Customer) bool {
	for id, existing := range rows {
		if id != customer.ID && existing.Identification == customer.Identification {
			return true
		}
	}
	return false
}

func clone(c service.Customer) service.Customer {
	raw, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}
	var out service.Customer
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

var _ service.Repository = (*MemoryStore)(nil)
