package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// txBeginner exposes the minimal pgx pool behaviour needed by CompanyDB.
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// CompanyDB wraps a pgx pool to execute queries within a company-specific search_path.
// The root schema holds the company directory and users; every company owns one schema.
type CompanyDB struct {
	pool       txBeginner
	rootSchema string
}

type CompanyDBConfig struct {
	Pool       *pgxpool.Pool
	RootSchema string
}

func NewCompanyDB(cfg CompanyDBConfig) *CompanyDB {
	if cfg.Pool == nil {
		panic("CompanyDB requires pool")
	}

	rootSchema := strings.TrimSpace(cfg.RootSchema)
	if rootSchema == "" {
		panic("CompanyDB requires root schema")
	}
	return &CompanyDB{pool: cfg.Pool, rootSchema: rootSchema}
}

// RootSchema is the directory schema name.
func (db *CompanyDB) RootSchema() string { return db.rootSchema }

// WithRoot executes fn inside a transaction scoped to the root schema only.
func (db *CompanyDB) WithRoot(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.inTx(ctx, db.rootSchema, fn)
}

// WithCompany executes fn inside a transaction with search_path set to the company schema.
// The root schema is deliberately left off the path so company tables never resolve to directory tables.
func (db *CompanyDB) WithCompany(ctx context.Context, space tenant.Space, fn func(tx pgx.Tx) error) error {
	if strings.TrimSpace(space.SchemaName) == "" {
		return fmt.Errorf("company schema is required in tenant.Space")
	}
	return db.inTx(ctx, space.SchemaName, fn)
}

func (db *CompanyDB) inTx(ctx context.Context, searchPath string, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, searchPath); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LockKey takes a transaction-scoped advisory lock on key. It is released on commit or rollback.
func LockKey(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("advisory lock %q: %w", key, err)
	}
	return nil
}
