// Package pgtest starts a disposable Postgres for repository integration tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// RootSchema is the directory schema used by integration tests.
const RootSchema = "harmony"

// Env bundles the handles integration tests need.
type Env struct {
	Pool      *pgxpool.Pool
	CompanyDB *persistence.CompanyDB
}

// Start runs postgres:16-alpine, bootstraps the root schema and returns the pool.
// Tests are skipped under -short.
func Start(t *testing.T) Env {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("harmony"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: connString, ApplicationName: "harmony-test"})
	require.NoError(t, err)
	t.Cleanup(func() { persistence.ClosePool(pool) })

	require.NoError(t, persistence.BootstrapRootSchema(ctx, pool, RootSchema))

	return Env{
		Pool:      pool,
		CompanyDB: persistence.NewCompanyDB(persistence.CompanyDBConfig{Pool: pool, RootSchema: RootSchema}),
	}
}

// CompanySpace provisions a company schema named after databaseName and returns its Space.
func (e Env) CompanySpace(t *testing.T, companyID string, databaseName string) tenant.Space {
	t.Helper()
	schema := tenant.BuildSchemaName(RootSchema, databaseName)
	require.NoError(t, persistence.EnsureCompanySchema(context.Background(), e.Pool, schema))

	space := tenant.Space{DatabaseName: databaseName, SchemaName: schema}
	if companyID != "" {
		require.NoError(t, space.CompanyID.UnmarshalText([]byte(companyID)))
	}
	return space
}
