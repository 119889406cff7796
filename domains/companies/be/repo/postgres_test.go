package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/domains/sequences/be/engine"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/persistence/pgtest"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

func newCompany(name string) service.Company {
	db := tenant.ToSnake(name)
	return service.Company{
		ID:           uuid.New(),
		Name:         name,
		DatabaseName: db,
		SchemaName:   tenant.BuildSchemaName(pgtest.RootSchema, db),
		Active:       true,
		CreatedBy:    "root",
		UpdatedBy:    "root",
		CreatedAt:    "05/03/2024 09:07",
		UpdatedAt:    "05/03/2024 09:07",
	}
}

func TestPostgresRepositoryLifecycle(t *testing.T) {
	env := pgtest.Start(t)
	ctx := context.Background()
	repo := NewPostgresRepository(env.CompanyDB)

	created, err := repo.Create(ctx, newCompany("Acme"))
	require.NoError(t, err)
	require.NotNil(t, created.Tags)
	require.Empty(t, created.Tags)

	_, err = repo.Create(ctx, newCompany("Acme"))
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)

	updated, err := repo.Mutate(ctx, created.ID, func(c *service.Company) error {
		c.Sequences = append(c.Sequences, service.Sequence{ID: "s1", Name: "4x2", Steps: []engine.Step{
			{StartTime: "06:00", EndTime: "14:00", Color: "#f00"},
			{Color: "#999"},
		}})
		c.Tags = append(c.Tags, service.Tag{ID: "t1", Name: "North", Scope: "worker"})
		c.UpdatedBy = "ana"
		return nil
	})
	require.NoError(t, err)
	require.Len(t, updated.Sequences[0].Steps, 2)
	require.Equal(t, engine.TypeRest, updated.Sequences[0].Steps[1].Type())

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "ana", got.UpdatedBy)
	require.Equal(t, "North", got.Tags[0].Name)
	require.Equal(t, created.SchemaName, got.SchemaName)

	_, err = repo.Mutate(ctx, created.ID, func(*service.Company) error { return service.ErrDefinitionNotFound })
	require.ErrorIs(t, err, service.ErrDefinitionNotFound)

	_, err = repo.Create(ctx, newCompany("Beta"))
	require.NoError(t, err)
	page, err := repo.List(ctx, service.ListOptions{Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalItems)
	require.Equal(t, 2, page.TotalPages)
	require.Equal(t, "Acme", page.Companies[0].Name)

	_, err = repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	_, err = repo.Get(ctx, created.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
