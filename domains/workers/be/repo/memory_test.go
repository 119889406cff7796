package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harmony-hq/harmony/domains/workers/be/service"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

func TestMemoryStoreUpsertKeepsIdentity(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := tenant.WithSpace(context.Background(), tenant.Space{CompanyID: uuid.New(), SchemaName: "harmony__company_acme"})

	luis := newWorker("Luis", "1010", "north")
	luis.Active = false
	_, err := store.Create(ctx, luis)
	require.NoError(t, err)

	refreshed := newWorker("Luis Perez", "1010", "south")
	refreshed.UpdatedAt = "06/03/2024 08:00"
	result, err := store.Upsert(ctx, []service.Worker{refreshed, newWorker("Ana", "2020")})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.Equal(t, "Ana", result.Created[0].Name)
	require.Len(t, result.Updated, 1)

	updated := result.Updated[0]
	require.Equal(t, luis.ID, updated.ID)
	require.Equal(t, "Luis Perez", updated.Name)
	require.Equal(t, []string{"south"}, updated.Tags)
	require.False(t, updated.Active)
	require.Equal(t, luis.CreatedAt, updated.CreatedAt)
	require.Equal(t, "06/03/2024 08:00", updated.UpdatedAt)

	found, err := store.GetByIdentifications(ctx, []string{"1010", "9999"})
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestMemoryStoreGetByIDsSkipsUnknown(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := tenant.WithSpace(context.Background(), tenant.Space{CompanyID: uuid.New(), SchemaName: "harmony__company_acme"})
	b := newWorker("Bea", "2")
	a := newWorker("Ana", "1")
	for _, w := range []service.Worker{b, a} {
		_, err := store.Create(ctx, w)
		require.NoError(t, err)
	}

	got, err := store.GetByIDs(ctx, []uuid.UUID{b.ID, uuid.New(), a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Ana", got[0].Name)
	require.Equal(t, "Bea", got[1].Name)

	_, err = store.Create(ctx, newWorker("Copy", "1"))
	require.ErrorIs(t, err, service.ErrDuplicate)
}
