package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harmony-hq/harmony/domains/sequences/be/engine"
	"github.com/harmony-hq/harmony/domains/stalls/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

func spaceCtx() context.Context {
	return tenant.WithSpace(context.Background(), tenant.Space{CompanyID: uuid.New(), SchemaName: "harmony__company_acme"})
}

func newStall(name, customer, month string) service.Stall {
	return service.Stall{ID: uuid.New(), Name: name, Customer: customer, Month: month, Year: "2024", Workers: []service.StallWorker{}}
}

func TestMemoryWorkerLifecycle(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := spaceCtx()
	stall, err := store.Create(ctx, newStall("Gate", "c1", "03"))
	require.NoError(t, err)

	_, err = store.AppendWorker(ctx, stall.ID, service.StallWorker{ID: "w1", Name: "Luis"})
	require.NoError(t, err)
	_, err = store.AppendWorker(ctx, stall.ID, service.StallWorker{ID: "w1", Name: "Luis"})
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)

	_, err = store.AppendWorker(ctx, uuid.New(), service.StallWorker{ID: "w1"})
	require.ErrorIs(t, err, service.ErrNotFound)

	updated, err := store.UpdateWorkerPointer(ctx, stall.ID, "w1", service.Pointer{
		Sequence: []engine.Step{{Color: "#fff"}}, Index: 0, Jump: 3,
	}, "ana", "05/03/2024 09:07")
	require.NoError(t, err)
	w, ok := updated.Worker("w1")
	require.True(t, ok)
	require.Equal(t, 3, w.Jump)
	require.Equal(t, "Luis", w.Name)

	_, err = store.UpdateWorkerPointer(ctx, stall.ID, "ghost", service.Pointer{}, "ana", "")
	require.ErrorIs(t, err, service.ErrWorkerNotFound)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	removed, err := store.RemoveWorker(ctx, stall.ID, "w1")
	require.NoError(t, err)
	require.Empty(t, removed.Workers)
	_, err = store.RemoveWorker(ctx, stall.ID, "w1")
	require.ErrorIs(t, err, service.ErrWorkerNotFound)
}

func TestMemoryUpdatePreservesWorkers(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := spaceCtx()
	stall := newStall("Gate", "c1", "03")
	stall.Workers = []service.StallWorker{{ID: "w1", Name: "Luis"}}
	_, err := store.Create(ctx, stall)
	require.NoError(t, err)

	stall.Name = "Main gate"
	stall.Workers = nil
	updated, err := store.Update(ctx, stall)
	require.NoError(t, err)
	require.Equal(t, "Main gate", updated.Name)
	require.Len(t, updated.Workers, 1)
}

func TestMemoryListFilters(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := spaceCtx()
	for _, s := range []service.Stall{newStall("A", "c1", "03"), newStall("B", "c1", "04"), newStall("C", "c2", "03")} {
		_, err := store.Create(ctx, s)
		require.NoError(t, err)
	}

	byCustomer, err := store.ListByCustomerAndPeriod(ctx, "c1", service.Period{Months: []string{"03", "04"}, Years: []string{"2024"}})
	require.NoError(t, err)
	require.Len(t, byCustomer, 2)

	march, err := store.ListByPeriod(ctx, service.Period{Months: []string{"03"}})
	require.NoError(t, err)
	require.Len(t, march, 2)
	require.Equal(t, "A", march[0].Name)
	require.Equal(t, "C", march[1].Name)

	deleted, err := store.Delete(ctx, march[0].ID)
	require.NoError(t, err)
	require.Equal(t, "A", deleted.Name)
	_, err = store.Get(ctx, march[0].ID)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestDecodeWorkersRejectsMalformedDocuments(t *testing.T) {
	t.Parallel()

	_, err := decodeWorkers([]byte(`[{"id":"w1","name":"Luis","sequence":[],"index":"zero","jump":0}]`))
	require.Error(t, err)

	_, err = decodeWorkers([]byte(`[{"name":"Luis","sequence":[],"index":0,"jump":0}]`))
	require.Error(t, err)

	workers, err := decodeWorkers([]byte(`[{"id":"w1","name":"Luis","sequence":[{"startTime":"","endTime":"","color":"#fff"}],"index":0,"jump":0}]`))
	require.NoError(t, err)
	require.Len(t, workers, 1)
}
