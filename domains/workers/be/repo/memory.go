package repo

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/domains/access/be/tagscope"
	"github.com/harmony-hq/harmony/domains/workers/be/service"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// MemoryStore is an in-memory Repository partitioned by company schema.
type MemoryStore struct {
	mu     sync.RWMutex
	spaces map[string]map[uuid.UUID]service.Worker
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{spaces: make(map[string]map[uuid.UUID]service.Worker)}
}

func (m *MemoryStore) Create(ctx context.Context, worker service.Worker) (service.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Worker{}, err
	}
	if _, ok := byIdentification(rows, worker.Identification); ok {
		return service.Worker{}, service.ErrDuplicate
	}
	rows[worker.ID] = clone(worker)
	return clone(worker), nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (service.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Worker{}, err
	}
	worker, ok := rows[id]
	if !ok {
		return service.Worker{}, service.ErrNotFound
	}
	return clone(worker), nil
}

func (m *MemoryStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]service.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]service.Worker, 0, len(ids))
	for _, id := range ids {
		if w, ok := rows[id]; ok {
			out = append(out, clone(w))
		}
	}
	sortByName(out)
	return out, nil
}

func (m *MemoryStore) GetByIdentifications(ctx context.Context, identifications []string) ([]service.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]service.Worker, 0, len(identifications))
	for _, ident := range identifications {
		if w, ok := byIdentification(rows, ident); ok {
			out = append(out, clone(w))
		}
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, worker service.Worker) (service.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Worker{}, err
	}
	current, ok := rows[worker.ID]
	if !ok {
		return service.Worker{}, service.ErrNotFound
	}
	if other, ok := byIdentification(rows, worker.Identification); ok && other.ID != worker.ID {
		return service.Worker{}, service.ErrDuplicate
	}
	worker.CreatedBy = current.CreatedBy
	worker.CreatedAt = current.CreatedAt
	rows[worker.ID] = clone(worker)
	return clone(worker), nil
}

// Upsert applies the whole batch under one lock.
func (m *MemoryStore) Upsert(ctx context.Context, workers []service.Worker) (service.ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.ImportResult{}, err
	}
	result := service.ImportResult{Created: []service.Worker{}, Updated: []service.Worker{}}
	for _, w := range workers {
		current, ok := byIdentification(rows, w.Identification)
		if !ok {
			rows[w.ID] = clone(w)
			result.Created = append(result.Created, clone(w))
			continue
		}
		current.Name = w.Name
		current.City = w.City
		current.Phone = w.Phone
		current.Address = w.Address
		current.Fields = w.Fields
		current.Tags = w.Tags
		current.UpdatedBy = w.UpdatedBy
		current.UpdatedAt = w.UpdatedAt
		rows[current.ID] = clone(current)
		result.Updated = append(result.Updated, clone(current))
	}
	return result, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) (service.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Worker{}, err
	}
	worker, ok := rows[id]
	if !ok {
		return service.Worker{}, service.ErrNotFound
	}
	delete(rows, id)
	return worker, nil
}

func (m *MemoryStore) List(ctx context.Context, filter service.Filter) ([]service.Worker, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return nil, 0, err
	}
	search := strings.ToLower(filter.Search)
	matched := make([]service.Worker, 0, len(rows))
	for _, w := range rows {
		if filter.Active != nil && w.Active != *filter.Active {
			continue
		}
		if !filter.AllTags && !tagscope.Visible(filter.Tags, w.Tags) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(w.Name), search) &&
			!strings.HasPrefix(strings.ToLower(w.Identification), search) {
			continue
		}
		matched = append(matched, clone(w))
	}
	sortByName(matched)

	total := len(matched)
	start := min(filter.Skip, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (m *MemoryStore) rows(ctx context.Context) (map[uuid.UUID]service.Worker, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return nil, service.ErrCompanyMissing
	}
	rows, ok := m.spaces[space.SchemaName]
	if !ok {
		rows = make(map[uuid.UUID]service.Worker)
		m.spaces[space.SchemaName] = rows
	}
	return rows, nil
}

func byIdentification(rows map[uuid.UUID]service.Worker, identification string) (service.Worker, bool) {
	for _, w := range rows {
		if w.Identification == identification {
			return w, true
		}
	}
	return service.Worker{}, false
}

func sortByName(workers []service.Worker) {
	sort.Slice(workers, func(i, j int) bool {
		if workers[i].Name == workers[j].Name {
			return workers[i].ID.String() < workers[j].ID.String()
		}
		return workers[i].Name < workers[j].Name
	})
}

func clone(w service.Worker) service.Worker {
	raw, err := json.Marshal(w)
	if err != nil {
		panic(err)
	}
	var out service.Worker
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

var _ service.Repository = (*MemoryStore)(nil)
