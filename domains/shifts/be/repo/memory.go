package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/domains/shifts/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// MemoryStore is an in-memory Repository used by tests and local development.
// Shifts are partitioned by company schema like the Postgres implementation.
type MemoryStore struct {
	mu     sync.RWMutex
	spaces map[string]map[uuid.UUID]service.Shift
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{spaces: make(map[string]map[uuid.UUID]service.Shift)}
}

func (m *MemoryStore) CreateMany(ctx context.Context, shifts []service.Shift) ([]service.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, space, err := m.rows(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkNaturalKeys(rows, shifts, nil); err != nil {
		return nil, err
	}

	out := make([]service.Shift, 0, len(shifts))
	for _, sh := range shifts {
		sh.Company = space.CompanyID
		rows[sh.ID] = sh
		out = append(out, sh)
	}
	return out, nil
}

func (m *MemoryStore) UpdateMany(ctx context.Context, updates []service.Update) ([]service.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, _, err := m.rows(ctx)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, u := range updates {
		if _, ok := rows[u.ID]; !ok {
			missing = append(missing, u.ID.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("update shifts [%s]: %w", strings.Join(missing, ","), service.ErrNotFound)
	}

	out := make([]service.Shift, 0, len(updates))
	for _, u := range updates {
		sh := applyUpdate(rows[u.ID], u)
		rows[u.ID] = sh
		out = append(out, sh)
	}
	return out, nil
}

func (m *MemoryStore) DeleteMany(ctx context.Context, stall string, ids []uuid.UUID) ([]service.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, _, err := m.rows(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]service.Shift, 0, len(ids))
	for _, id := range ids {
		sh, ok := rows[id]
		if !ok || sh.Stall != stall {
			continue
		}
		delete(rows, id)
		out = append(out, sh)
	}
	return out, nil
}

func (m *MemoryStore) FindByMonthAndYear(ctx context.Context, filter service.Filter) ([]service.Shift, error) {
	return m.find(ctx, func(sh service.Shift) bool { return matchesFilter(sh, filter) })
}

func (m *MemoryStore) FindByCustomerAndPeriod(ctx context.Context, customer string, filter service.Filter) ([]service.Shift, error) {
	return m.find(ctx, func(sh service.Shift) bool {
		return sh.Customer == customer && matchesFilter(sh, filter)
	})
}

func (m *MemoryStore) FindByWorkers(ctx context.Context, workers []string, types []string) ([]service.Shift, error) {
	return m.find(ctx, func(sh service.Shift) bool {
		return contains(workers, sh.Worker) && (len(types) == 0 || contains(types, sh.Type))
	})
}

func (m *MemoryStore) ReplaceForWorker(ctx context.Context, r service.Replacement) (service.ReplaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, space, err := m.rows(ctx)
	if err != nil {
		return service.ReplaceResult{}, err
	}

	result := service.ReplaceResult{}
	keptDays := map[string]struct{}{}
	removed := map[uuid.UUID]struct{}{}
	for id, sh := range rows {
		if sh.Stall != r.Stall || sh.Worker != r.Worker || sh.Day < r.From || sh.Day > r.To {
			continue
		}
		if sh.Keep {
			keptDays[sh.Day] = struct{}{}
			result.Kept = append(result.Kept, sh)
			continue
		}
		removed[id] = struct{}{}
		result.Removed = append(result.Removed, sh)
	}

	inserts := make([]service.Shift, 0, len(r.Shifts))
	for _, sh := range r.Shifts {
		if _, kept := keptDays[sh.Day]; kept {
			continue
		}
		sh.Company = space.CompanyID
		inserts = append(inserts, sh)
	}
	if err := checkNaturalKeys(rows, inserts, removed); err != nil {
		return service.ReplaceResult{}, err
	}

	for id := range removed {
		delete(rows, id)
	}
	for _, sh := range inserts {
		rows[sh.ID] = sh
	}
	result.Inserted = inserts
	return result, nil
}

func (m *MemoryStore) DeleteByStall(ctx context.Context, stall string) ([]service.Shift, error) {
	return m.deleteWhere(ctx, func(sh service.Shift) bool { return sh.Stall == stall })
}

func (m *MemoryStore) DeleteByStallWorker(ctx context.Context, stall, worker string) ([]service.Shift, error) {
	return m.deleteWhere(ctx, func(sh service.Shift) bool { return sh.Stall == stall && sh.Worker == worker })
}

func (m *MemoryStore) deleteWhere(ctx context.Context, match func(service.Shift) bool) ([]service.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, _, err := m.rows(ctx)
	if err != nil {
		return nil, err
	}
	var out []service.Shift
	for id, sh := range rows {
		if match(sh) {
			delete(rows, id)
			out = append(out, sh)
		}
	}
	sortShifts(out)
	return out, nil
}

func (m *MemoryStore) find(ctx context.Context, match func(service.Shift) bool) ([]service.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, _, err := m.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := []service.Shift{}
	for _, sh := range rows {
		if match(sh) {
			out = append(out, sh)
		}
	}
	sortShifts(out)
	return out, nil
}

// rows must be called with m.mu held for writing.
func (m *MemoryStore) rows(ctx context.Context) (map[uuid.UUID]service.Shift, tenant.Space, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return nil, tenant.Space{}, service.ErrCompanyMissing
	}
	rows, ok := m.spaces[space.SchemaName]
	if !ok {
		rows = make(map[uuid.UUID]service.Shift)
		m.spaces[space.SchemaName] = rows
	}
	return rows, space, nil
}

func checkNaturalKeys(rows map[uuid.UUID]service.Shift, incoming []service.Shift, ignore map[uuid.UUID]struct{}) error {
	keys := make(map[string]struct{}, len(rows)+len(incoming))
	for id, sh := range rows {
		if _, skip := ignore[id]; skip {
			continue
		}
		keys[naturalKey(sh)] = struct{}{}
	}
	for _, sh := range incoming {
		key := naturalKey(sh)
		if _, dup := keys[key]; dup {
			return fmt.Errorf("shift %s: %w", key, apperr.ErrAlreadyExists)
		}
		keys[key] = struct{}{}
	}
	return nil
}

func naturalKey(sh service.Shift) string {
	return sh.Stall + "/" + sh.Worker + "/" + sh.Day + "/" + sh.Type
}

func applyUpdate(sh service.Shift, u service.Update) service.Shift {
	sh.StartTime = u.StartTime
	sh.EndTime = u.EndTime
	sh.Color = u.Color
	sh.Abbreviation = u.Abbreviation
	sh.Description = u.Description
	sh.Type = u.Type
	sh.Active = u.Active
	sh.Keep = u.Keep
	sh.UpdatedBy = u.UpdatedBy
	sh.UpdatedAt = u.UpdatedAt
	return sh
}

func matchesFilter(sh service.Shift, f service.Filter) bool {
	return (len(f.Months) == 0 || contains(f.Months, sh.Month)) &&
		(len(f.Years) == 0 || contains(f.Years, sh.Year)) &&
		(len(f.Types) == 0 || contains(f.Types, sh.Type))
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func sortShifts(shifts []service.Shift) {
	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].Day != shifts[j].Day {
			return shifts[i].Day < shifts[j].Day
		}
		return naturalKey(shifts[i]) < naturalKey(shifts[j])
	})
}

var _ service.Repository = (*MemoryStore)(nil)
