// Package provisioning prepares the storage a new company needs before it is listed in the directory.
package provisioning

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/platform/go/persistence"
)

// DBProvisioner creates company schemas and their tables.
type DBProvisioner struct {
	pool *pgxpool.Pool
}

func NewDBProvisioner(pool *pgxpool.Pool) *DBProvisioner {
	if pool == nil {
		panic("db provisioner requires pool")
	}
	return &DBProvisioner{pool: pool}
}

// EnsureCompanySchema is idempotent; re-running it on an existing schema only adds missing objects.
func (p *DBProvisioner) EnsureCompanySchema(ctx context.Context, schemaName string) error {
	schemaName = strings.TrimSpace(schemaName)
	if schemaName == "" {
		return fmt.Errorf("schema name is required")
	}
	return persistence.EnsureCompanySchema(ctx, p.pool, schemaName)
}

// SchemaExists reports whether schemaName is present in the database.
func (p *DBProvisioner) SchemaExists(ctx context.Context, schemaName string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, schemaName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check schema %s: %w", schemaName, err)
	}
	return exists, nil
}

var _ service.SchemaProvisioner = (*DBProvisioner)(nil)
