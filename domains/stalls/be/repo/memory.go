package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/domains/sequences/be/engine"
	"github.com/harmony-hq/harmony/domains/stalls/be/service"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// MemoryStore is an in-memory Repository partitioned by company schema.
type MemoryStore struct {
	mu     sync.RWMutex
	spaces map[string]map[uuid.UUID]service.Stall
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{spaces: make(map[string]map[uuid.UUID]service.Stall)}
}

func (m *MemoryStore) Create(ctx context.Context, stall service.Stall) (service.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Stall{}, err
	}
	rows[stall.ID] = clone(stall)
	return clone(stall), nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (service.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Stall{}, err
	}
	stall, ok := rows[id]
	if !ok {
		return service.Stall{}, service.ErrNotFound
	}
	return clone(stall), nil
}

func (m *MemoryStore) Update(ctx context.Context, stall service.Stall) (service.Stall, error) {
	return m.mutate(ctx, stall.ID, func(current *service.Stall) error {
		workers := current.Workers
		*current = clone(stall)
		current.Workers = workers
		return nil
	})
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) (service.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Stall{}, err
	}
	stall, ok := rows[id]
	if !ok {
		return service.Stall{}, service.ErrNotFound
	}
	delete(rows, id)
	return stall, nil
}

func (m *MemoryStore) AppendWorker(ctx context.Context, id uuid.UUID, worker service.StallWorker) (service.Stall, error) {
	return m.mutate(ctx, id, func(current *service.Stall) error {
		if _, exists := current.Worker(worker.ID); exists {
			return service.ErrWorkerAssigned
		}
		current.Workers = append(current.Workers, worker)
		return nil
	})
}

func (m *MemoryStore) UpdateWorkerPointer(ctx context.Context, id uuid.UUID, workerID string, pointer service.Pointer, updatedBy, updatedAt string) (service.Stall, error) {
	return m.mutate(ctx, id, func(current *service.Stall) error {
		for i := range current.Workers {
			if current.Workers[i].ID != workerID {
				continue
			}
			current.Workers[i].Sequence = append([]engine.Step{}, pointer.Sequence...)
			current.Workers[i].Index = pointer.Index
			current.Workers[i].Jump = pointer.Jump
			current.Workers[i].UpdatedBy = updatedBy
			current.Workers[i].UpdatedAt = updatedAt
			current.UpdatedBy = updatedBy
			current.UpdatedAt = updatedAt
			return nil
		}
		return service.ErrWorkerNotFound
	})
}

func (m *MemoryStore) RemoveWorker(ctx context.Context, id uuid.UUID, workerID string) (service.Stall, error) {
	return m.mutate(ctx, id, func(current *service.Stall) error {
		for i := range current.Workers {
			if current.Workers[i].ID == workerID {
				current.Workers = append(current.Workers[:i], current.Workers[i+1:]...)
				return nil
			}
		}
		return service.ErrWorkerNotFound
	})
}

func (m *MemoryStore) ListByCustomerAndPeriod(ctx context.Context, customer string, period service.Period) ([]service.Stall, error) {
	return m.list(ctx, func(s service.Stall) bool { return s.Customer == customer && inPeriod(s, period) })
}

func (m *MemoryStore) ListByPeriod(ctx context.Context, period service.Period) ([]service.Stall, error) {
	return m.list(ctx, func(s service.Stall) bool { return inPeriod(s, period) })
}

func (m *MemoryStore) mutate(ctx context.Context, id uuid.UUID, fn func(*service.Stall) error) (service.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return service.Stall{}, err
	}
	current, ok := rows[id]
	if !ok {
		return service.Stall{}, service.ErrNotFound
	}
	next := clone(current)
	if err := fn(&next); err != nil {
		return service.Stall{}, err
	}
	rows[id] = next
	return clone(next), nil
}

func (m *MemoryStore) list(ctx context.Context, match func(service.Stall) bool) ([]service.Stall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := []service.Stall{}
	for _, s := range rows {
		if match(s) {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) rows(ctx context.Context) (map[uuid.UUID]service.Stall, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return nil, service.ErrCompanyMissing
	}
	rows, ok := m.spaces[space.SchemaName]
	if !ok {
		rows = make(map[uuid.UUID]service.Stall)
		m.spaces[space.SchemaName] = rows
	}
	return rows, nil
}

func clone(s service.Stall) service.Stall {
	workers := make([]service.StallWorker, 0, len(s.Workers))
	for _, w := range s.Workers {
		w.Sequence = append([]engine.Step{}, w.Sequence...)
		workers = append(workers, w)
	}
	s.Workers = workers
	return s
}

func inPeriod(s service.Stall, p service.Period) bool {
	return (len(p.Months) == 0 || contains(p.Months, s.Month)) &&
		(len(p.Years) == 0 || contains(p.Years, s.Year))
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

var _ service.Repository = (*MemoryStore)(nil)
