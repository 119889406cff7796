package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/harmony-hq/harmony/domains/shifts/be/service"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

const shiftColumns = `shift_id, company_id, day, start_time, end_time, color, abbreviation, description,
	sequence, position, type, active, keep, worker, worker_name, stall, stall_name, customer,
	customer_name, month, year, created_by, updated_by, created_at, updated_at`

const insertShiftSQL = `INSERT INTO shifts (` + shiftColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
RETURNING ` + shiftColumns

// PostgresRepository stores shifts in the company schema.
type PostgresRepository struct {
	db *persistence.CompanyDB
}

// NewPostgresRepository constructs a repository backed by CompanyDB.
func NewPostgresRepository(db *persistence.CompanyDB) *PostgresRepository {
	if db == nil {
		panic("company db is required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateMany(ctx context.Context, shifts []service.Shift) ([]service.Shift, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return nil, err
	}

	var out []service.Shift
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		var txErr error
		out, txErr = insertShifts(ctx, tx, space, shifts)
		return txErr
	})
	if err != nil {
		return nil, persistence.MapError("create shifts", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateMany(ctx context.Context, updates []service.Update) ([]service.Shift, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]service.Shift, 0, len(updates))
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		var missing []string
		for _, u := range updates {
			row := tx.QueryRow(ctx, `
UPDATE shifts SET start_time = $3, end_time = $4, color = $5, abbreviation = $6, description = $7,
	type = $8, active = $9, keep = $10, updated_by = $11, updated_at = $12
WHERE shift_id = $1 AND company_id = $2
RETURNING `+shiftColumns,
				u.ID, space.CompanyID, u.StartTime, u.EndTime, u.Color, u.Abbreviation, u.Description,
				u.Type, u.Active, u.Keep, u.UpdatedBy, u.UpdatedAt)
			sh, err := scanShift(row)
			if errors.Is(err, pgx.ErrNoRows) {
				missing = append(missing, u.ID.String())
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, sh)
		}
		if len(missing) > 0 {
			return fmt.Errorf("update shifts [%s]: %w", strings.Join(missing, ","), service.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, persistence.MapError("update shifts", err)
	}
	return out, nil
}

func (r *PostgresRepository) DeleteMany(ctx context.Context, stall string, ids []uuid.UUID) ([]service.Shift, error) {
	return r.deleteWhere(ctx, "delete shifts", `stall = $2 AND shift_id = ANY($3)`, stall, ids)
}

func (r *PostgresRepository) FindByMonthAndYear(ctx context.Context, filter service.Filter) ([]service.Shift, error) {
	return r.query(ctx, "find shifts by period", `
SELECT `+shiftColumns+` FROM shifts
WHERE company_id = $1
  AND (cardinality($2::text[]) = 0 OR month = ANY($2))
  AND (cardinality($3::text[]) = 0 OR year = ANY($3))
  AND (cardinality($4::text[]) = 0 OR type = ANY($4))
ORDER BY day, worker`, nonNil(filter.Months), nonNil(filter.Years), nonNil(filter.Types))
}

func (r *PostgresRepository) FindByCustomerAndPeriod(ctx context.Context, customer string, filter service.Filter) ([]service.Shift, error) {
	return r.query(ctx, "find shifts by customer", `
SELECT `+shiftColumns+` FROM shifts
WHERE company_id = $1 AND customer = $2
  AND (cardinality($3::text[]) = 0 OR month = ANY($3))
  AND (cardinality($4::text[]) = 0 OR year = ANY($4))
  AND (cardinality($5::text[]) = 0 OR type = ANY($5))
ORDER BY day, worker`, customer, nonNil(filter.Months), nonNil(filter.Years), nonNil(filter.Types))
}

func (r *PostgresRepository) FindByWorkers(ctx context.Context, workers []string, types []string) ([]service.Shift, error) {
	return r.query(ctx, "find shifts by workers", `
SELECT `+shiftColumns+` FROM shifts
WHERE company_id = $1 AND worker = ANY($2)
  AND (cardinality($3::text[]) = 0 OR type = ANY($3))
ORDER BY day, worker`, nonNil(workers), nonNil(types))
}

func (r *PostgresRepository) ReplaceForWorker(ctx context.Context, rep service.Replacement) (service.ReplaceResult, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return service.ReplaceResult{}, err
	}

	var result service.ReplaceResult
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		if err := persistence.LockKey(ctx, tx, "stall:"+rep.Stall); err != nil {
			return err
		}

		kept, err := collectShifts(tx.Query(ctx, `
SELECT `+shiftColumns+` FROM shifts
WHERE company_id = $1 AND stall = $2 AND worker = $3 AND day BETWEEN $4 AND $5 AND keep
ORDER BY day`, space.CompanyID, rep.Stall, rep.Worker, rep.From, rep.To))
		if err != nil {
			return err
		}

		removed, err := collectShifts(tx.Query(ctx, `
DELETE FROM shifts
WHERE company_id = $1 AND stall = $2 AND worker = $3 AND day BETWEEN $4 AND $5 AND NOT keep
RETURNING `+shiftColumns, space.CompanyID, rep.Stall, rep.Worker, rep.From, rep.To))
		if err != nil {
			return err
		}

		keptDays := make(map[string]struct{}, len(kept))
		for _, sh := range kept {
			keptDays[sh.Day] = struct{}{}
		}
		inserts := make([]service.Shift, 0, len(rep.Shifts))
		for _, sh := range rep.Shifts {
			if _, ok := keptDays[sh.Day]; !ok {
				inserts = append(inserts, sh)
			}
		}

		inserted, err := insertShifts(ctx, tx, space, inserts)
		if err != nil {
			return err
		}
		result = service.ReplaceResult{Removed: removed, Inserted: inserted, Kept: kept}
		return nil
	})
	if err != nil {
		return service.ReplaceResult{}, persistence.MapError("replace shifts", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByStall(ctx context.Context, stall string) ([]service.Shift, error) {
	return r.deleteWhere(ctx, "delete stall shifts", `stall = $2`, stall)
}

func (r *PostgresRepository) DeleteByStallWorker(ctx context.Context, stall, worker string) ([]service.Shift, error) {
	return r.deleteWhere(ctx, "delete worker shifts", `stall = $2 AND worker = $3`, stall, worker)
}

// deleteWhere runs a company-scoped DELETE; predicate placeholders start at $2.
func (r *PostgresRepository) deleteWhere(ctx context.Context, op, predicate string, args ...any) ([]service.Shift, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return nil, err
	}

	var out []service.Shift
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		var txErr error
		out, txErr = collectShifts(tx.Query(ctx,
			`DELETE FROM shifts WHERE company_id = $1 AND `+predicate+` RETURNING `+shiftColumns,
			append([]any{space.CompanyID}, args...)...))
		return txErr
	})
	if err != nil {
		return nil, persistence.MapError(op, err)
	}
	return out, nil
}

// query runs a company-scoped SELECT; $1 is always the company id.
func (r *PostgresRepository) query(ctx context.Context, op, sql string, args ...any) ([]service.Shift, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return nil, err
	}

	var out []service.Shift
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		var txErr error
		out, txErr = collectShifts(tx.Query(ctx, sql, append([]any{space.CompanyID}, args...)...))
		return txErr
	})
	if err != nil {
		return nil, persistence.MapError(op, err)
	}
	return out, nil
}

func insertShifts(ctx context.Context, tx pgx.Tx, space tenant.Space, shifts []service.Shift) ([]service.Shift, error) {
	if len(shifts) == 0 {
		return []service.Shift{}, nil
	}

	batch := &pgx.Batch{}
	for _, sh := range shifts {
		batch.Queue(insertShiftSQL,
			sh.ID, space.CompanyID, sh.Day, sh.StartTime, sh.EndTime, sh.Color, sh.Abbreviation,
			sh.Description, sh.Sequence, sh.Position, sh.Type, sh.Active, sh.Keep, sh.Worker,
			sh.WorkerName, sh.Stall, sh.StallName, sh.Customer, sh.CustomerName, sh.Month, sh.Year,
			sh.CreatedBy, sh.UpdatedBy, sh.CreatedAt, sh.UpdatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	out := make([]service.Shift, 0, len(shifts))
	for range shifts {
		sh, err := scanShift(results.QueryRow())
		if err != nil {
			_ = results.Close()
			return nil, err
		}
		out = append(out, sh)
	}
	if err := results.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func collectShifts(rows pgx.Rows, err error) ([]service.Shift, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []service.Shift{}
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func scanShift(row pgx.Row) (service.Shift, error) {
	var sh service.Shift
	err := row.Scan(
		&sh.ID, &sh.Company, &sh.Day, &sh.StartTime, &sh.EndTime, &sh.Color, &sh.Abbreviation,
		&sh.Description, &sh.Sequence, &sh.Position, &sh.Type, &sh.Active, &sh.Keep, &sh.Worker,
		&sh.WorkerName, &sh.Stall, &sh.StallName, &sh.Customer, &sh.CustomerName, &sh.Month,
		&sh.Year, &sh.CreatedBy, &sh.UpdatedBy, &sh.CreatedAt, &sh.UpdatedAt,
	)
	return sh, err
}

func requireCompanySpace(ctx context.Context) (tenant.Space, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return tenant.Space{}, service.ErrCompanyMissing
	}
	return space, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ service.Repository = (*PostgresRepository)(nil)
