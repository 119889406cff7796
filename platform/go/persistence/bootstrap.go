package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/harmony-hq/harmony/database"
)

// BootstrapRootSchema creates the root schema (if missing) and applies the directory DDL
// (companies, then users) in a single transaction with search_path set to the root schema.
//
// SQL is embedded at build time so binaries stay self-contained. The helper is
// idempotent and intended for CLI bootstrap and tests.
func BootstrapRootSchema(ctx context.Context, pool *pgxpool.Pool, rootSchema string) error {
	if pool == nil {
		return fmt.Errorf("bootstrap root schema: pool is required")
	}
	if rootSchema == "" {
		return fmt.Errorf("bootstrap root schema: root schema is required")
	}
	return applySchema(ctx, pool, rootSchema, sqlassets.PlatformDDL())
}

// EnsureCompanySchema creates a company schema (if missing) and applies the company DDL.
// Idempotent; called when a company is created and by the CLI.
func EnsureCompanySchema(ctx context.Context, pool *pgxpool.Pool, schemaName string) error {
	if pool == nil {
		return fmt.Errorf("ensure company schema: pool is required")
	}
	if schemaName == "" {
		return fmt.Errorf("ensure company schema: schema name is required")
	}
	return applySchema(ctx, pool, schemaName, sqlassets.CompanySpaceDDL())
}

func applySchema(ctx context.Context, pool *pgxpool.Pool, schema string, files []string) error {
	var statements []string
	for _, file := range files {
		statements = append(statements, splitStatements(file)...)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, schema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl in %s: %w", schema, err)
		}
	}

	return tx.Commit(ctx)
}

// splitStatements breaks a DDL file on ";" and drops comment-only fragments.
func splitStatements(sql string) []string {
	raw := strings.Split(sql, ";")
	out := make([]string, 0, len(raw))
	for _, chunk := range raw {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
