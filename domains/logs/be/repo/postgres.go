package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/harmony-hq/harmony/domains/logs/be/service"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

const logColumns = `log_id, company_id, user_email, user_name, type, message, month, year, created_at`

// PostgresRepository stores log entries in the company schema.
type PostgresRepository struct {
	db *persistence.CompanyDB
}

func NewPostgresRepository(db *persistence.CompanyDB) *PostgresRepository {
	if db == nil {
		panic("company db is required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, e service.Entry) (service.Entry, error) {
	var out service.Entry
	err := r.withSpace(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanEntry(tx.QueryRow(ctx, `
INSERT INTO logs (`+logColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+logColumns,
			e.ID, e.Company, e.User, e.UserName, e.Type, e.Message, e.Month, e.Year, e.CreatedAt))
		return err
	})
	if err != nil {
		return service.Entry{}, persistence.MapError("insert log", err)
	}
	return out, nil
}

func (r *PostgresRepository) ListByPeriod(ctx context.Context, month, year string) ([]service.Entry, error) {
	out := []service.Entry{}
	err := r.withSpace(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+logColumns+` FROM logs WHERE month = $1 AND year = $2 ORDER BY logged_at DESC`, month, year)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, persistence.MapError("list logs", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) (service.Entry, error) {
	var out service.Entry
	err := r.withSpace(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanEntry(tx.QueryRow(ctx, `DELETE FROM logs WHERE log_id = $1 RETURNING `+logColumns, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return service.Entry{}, service.ErrNotFound
	}
	if err != nil {
		return service.Entry{}, persistence.MapError("delete log", err)
	}
	return out, nil
}

func (r *PostgresRepository) withSpace(ctx context.Context, fn func(tx pgx.Tx) error) error {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return service.ErrCompanyMissing
	}
	return r.db.WithCompany(ctx, space, fn)
}

func scanEntry(row pgx.Row) (service.Entry, error) {
	var e service.Entry
	err := row.Scan(&e.ID, &e.Company, &e.User, &e.UserName, &e.Type, &e.Message, &e.Month, &e.Year, &e.CreatedAt)
	return e, err
}

var _ service.Repository = (*PostgresRepository)(nil)
