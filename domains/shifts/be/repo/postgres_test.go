package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harmony-hq/harmony/domains/shifts/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/persistence/pgtest"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

func TestPostgresRepositoryLifecycle(t *testing.T) {
	env := pgtest.Start(t)
	space := env.CompanySpace(t, uuid.NewString(), "acme")
	ctx := tenant.WithSpace(context.Background(), space)
	repo := NewPostgresRepository(env.CompanyDB)

	first := shift("s1", "w1", "2024-03-01")
	second := shift("s1", "w1", "2024-03-02")
	created, err := repo.CreateMany(ctx, []service.Shift{first, second})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Equal(t, space.CompanyID, created[0].Company)

	// natural key collision rolls back the whole batch
	_, err = repo.CreateMany(ctx, []service.Shift{shift("s1", "w1", "2024-03-03"), shift("s1", "w1", "2024-03-01")})
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)

	all, err := repo.FindByMonthAndYear(ctx, service.Filter{Months: []string{"03"}, Years: []string{"2024"}})
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = repo.UpdateMany(ctx, []service.Update{{ID: first.ID, Type: "shift", Keep: true}, {ID: uuid.New(), Type: "shift"}})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	updated, err := repo.UpdateMany(ctx, []service.Update{{ID: first.ID, Type: "shift", Keep: true, Color: "#123"}})
	require.NoError(t, err)
	require.True(t, updated[0].Keep)

	res, err := repo.ReplaceForWorker(ctx, service.Replacement{
		Stall: "s1", Worker: "w1", From: "2024-03-01", To: "2024-03-02",
		Shifts: []service.Shift{shift("s1", "w1", "2024-03-01"), shift("s1", "w1", "2024-03-02")},
	})
	require.NoError(t, err)
	require.Len(t, res.Kept, 1)
	require.Len(t, res.Removed, 1)
	require.Len(t, res.Inserted, 1)

	deleted, err := repo.DeleteMany(ctx, "other-stall", []uuid.UUID{first.ID})
	require.NoError(t, err)
	require.Empty(t, deleted)

	deleted, err = repo.DeleteByStall(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, deleted, 2)
}
