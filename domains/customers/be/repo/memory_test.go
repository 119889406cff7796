package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harmony-hq/harmony/domains/customers/be/service"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

func TestMemoryStoreIsPartitionedByCompany(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	acme := tenant.WithSpace(context.Background(), tenant.Space{CompanyID: uuid.New(), SchemaName: "harmony__company_acme"})
	globex := tenant.WithSpace(context.Background(), tenant.Space{CompanyID: uuid.New(), SchemaName: "harmony__company_globex"})

	c := newCustomer("Banco Norte", "900-1", "north")
	_, err := store.Create(acme, c)
	require.NoError(t, err)

	_, err = store.Get(globex, c.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	// identification is only unique inside a company
	_, err = store.Create(globex, newCustomer("Banco Norte", "900-1"))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), c.ID)
	require.ErrorIs(t, err, service.ErrCompanyMissing)
}

func TestMemoryStoreListPaging(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := tenant.WithSpace(context.Background(), tenant.Space{CompanyID: uuid.New(), SchemaName: "harmony__company_acme"})
	for i, name := range []string{"Delta", "Alfa", "Charlie", "Bravo"} {
		_, err := store.Create(ctx, newCustomer(name, string(rune('a'+i)), "north"))
		require.NoError(t, err)
	}

	items, total, err := store.List(ctx, service.Filter{AllTags: true, Limit: 2, Skip: 1})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Equal(t, "Bravo", items[0].Name)
	require.Equal(t, "Charlie", items[1].Name)

	items, total, err = store.List(ctx, service.Filter{Tags: []string{"south"}})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, items)
}
