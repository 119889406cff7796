package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/domains/logs/be/service"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// MemoryStore keeps log entries in insertion order per company schema.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]service.Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]service.Entry)}
}

func (m *MemoryStore) Insert(ctx context.Context, entry service.Entry) (service.Entry, error) {
	schema, err := schemaFrom(ctx)
	if err != nil {
		return service.Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[schema] = append(m.entries[schema], entry)
	return entry, nil
}

func (m *MemoryStore) ListByPeriod(ctx context.Context, month, year string) ([]service.Entry, error) {
	schema, err := schemaFrom(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []service.Entry{}
	entries := m.entries[schema]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Month == month && entries[i].Year == year {
			out = append(out, entries[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) (service.Entry, error) {
	schema, err := schemaFrom(ctx)
	if err != nil {
		return service.Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.entries[schema]
	for i, e := range entries {
		if e.ID == id {
			m.entries[schema] = append(entries[:i], entries[i+1:]...)
			return e, nil
		}
	}
	return service.Entry{}, service.ErrNotFound
}

// Entries returns a copy of everything recorded for the company on ctx.
func (m *MemoryStore) Entries(ctx context.Context) []service.Entry {
	schema, err := schemaFrom(ctx)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.Entry(nil), m.entries[schema]...)
}

func schemaFrom(ctx context.Context) (string, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return "", service.ErrCompanyMissing
	}
	return space.SchemaName, nil
}

var _ service.Repository = (*MemoryStore)(nil)
