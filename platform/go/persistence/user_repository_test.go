package persistence_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/persistence/pgtest"
)

func TestUserStoreLifecycle(t *testing.T) {
	env := pgtest.Start(t)
	ctx := context.Background()

	companyID := uuid.New()
	_, err := env.Pool.Exec(ctx, `INSERT INTO harmony.companies (company_id, name, database_name, schema_name)
VALUES ($1, 'Acme', 'acme', 'harmony__company_acme')`, companyID)
	require.NoError(t, err)

	store, err := persistence.NewUserStore(env.CompanyDB)
	require.NoError(t, err)

	created, err := store.CreateUser(ctx, persistence.User{
		UserID:       uuid.New(),
		UserName:     "Ana",
		Email:        " Ana@Acme.io ",
		PasswordHash: "hash",
		CompanyID:    companyID,
		Roles:        []string{"admin"},
		Active:       true,
	})
	require.NoError(t, err)
	require.Equal(t, "ana@acme.io", created.Email)
	require.Equal(t, []string{}, created.Customers)

	_, err = store.CreateUser(ctx, persistence.User{UserID: uuid.New(), UserName: "Dup", Email: "ANA@acme.io", CompanyID: companyID})
	require.ErrorIs(t, err, persistence.ErrUserConflict)
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)

	byEmail, err := store.GetUserByEmail(ctx, "ANA@ACME.IO")
	require.NoError(t, err)
	require.Equal(t, created.UserID, byEmail.UserID)

	byEmail.Workers = []string{"north"}
	byEmail.UpdatedBy = "root"
	updated, err := store.UpdateUser(ctx, byEmail)
	require.NoError(t, err)
	require.Equal(t, []string{"north"}, updated.Workers)

	list, err := store.ListUsers(ctx, persistence.ListUsersParams{CompanyID: &companyID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 1, list.TotalItems)

	other := uuid.New()
	list, err = store.ListUsers(ctx, persistence.ListUsersParams{CompanyID: &other})
	require.NoError(t, err)
	require.Zero(t, list.TotalItems)
	require.Empty(t, list.Users)

	_, err = store.DeleteUser(ctx, created.UserID)
	require.NoError(t, err)
	_, err = store.GetUser(ctx, created.UserID)
	require.ErrorIs(t, err, persistence.ErrUserNotFound)
}
