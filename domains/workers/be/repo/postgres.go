package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	companysvc "github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/domains/workers/be/service"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

const workerColumns = `worker_id, name, identification, city, phone, address, fields, tags, active,
	created_by, updated_by, created_at, updated_at`

const identificationConstraint = "workers_identification_unique"

// upsertWorkerSQL refreshes the descriptive columns of an existing identification and
// reports through xmax whether the row was inserted.
const upsertWorkerSQL = `
INSERT INTO workers (` + workerColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT ON CONSTRAINT workers_identification_unique DO UPDATE SET
	name = EXCLUDED.name, city = EXCLUDED.city, phone = EXCLUDED.phone, address = EXCLUDED.address,
	fields = EXCLUDED.fields, tags = EXCLUDED.tags, updated_by = EXCLUDED.updated_by,
	updated_at = EXCLUDED.updated_at
RETURNING ` + workerColumns + `, (xmax = 0) AS inserted`

// PostgresRepository stores workers in the company schema.
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

func (r *PostgresRepository) Create(ctx context.Context, w service.Worker) (service.Worker, error) {
	fields, err := encodeFields(w.Fields)
	if err != nil {
		return service.Worker{}, err
	}
	return r.one(ctx, "create worker", `
INSERT INTO workers (`+workerColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING `+workerColumns,
		w.ID, w.Name, w.Identification, w.City, w.Phone, w.Address, fields, nonNil(w.Tags), w.Active,
		w.CreatedBy, w.UpdatedBy, w.CreatedAt, w.UpdatedAt)
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Worker, error) {
	return r.one(ctx, "get worker", `SELECT `+workerColumns+` FROM workers WHERE worker_id = $1`, id)
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]service.Worker, error) {
	return r.many(ctx, "get workers by id", `
SELECT `+workerColumns+` FROM workers WHERE worker_id = ANY($1) ORDER BY name, worker_id`, ids)
}

func (r *PostgresRepository) GetByIdentifications(ctx context.Context, identifications []string) ([]service.Worker, error) {
	return r.many(ctx, "get workers by identification", `
SELECT `+workerColumns+` FROM workers WHERE identification = ANY($1) ORDER BY name, worker_id`,
		nonNil(identifications))
}

func (r *PostgresRepository) Update(ctx context.Context, w service.Worker) (service.Worker, error) {
	fields, err := encodeFields(w.Fields)
	if err != nil {
		return service.Worker{}, err
	}
	return r.one(ctx, "update worker", `
UPDATE workers SET name = $2, identification = $3, city = $4, phone = $5, address = $6, fields = $7,
	tags = $8, active = $9, updated_by = $10, updated_at = $11
WHERE worker_id = $1
RETURNING `+workerColumns,
		w.ID, w.Name, w.Identification, w.City, w.Phone, w.Address, fields, nonNil(w.Tags), w.Active,
		w.UpdatedBy, w.UpdatedAt)
}

// Upsert runs the batch in one transaction; any failing row rolls back the import.
func (r *PostgresRepository) Upsert(ctx context.Context, workers []service.Worker) (service.ImportResult, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return service.ImportResult{}, err
	}
	result := service.ImportResult{Created: []service.Worker{}, Updated: []service.Worker{}}
	if len(workers) == 0 {
		return result, nil
	}

	batch := &pgx.Batch{}
	for _, w := range workers {
		fields, err := encodeFields(w.Fields)
		if err != nil {
			return service.ImportResult{}, err
		}
		batch.Queue(upsertWorkerSQL,
			w.ID, w.Name, w.Identification, w.City, w.Phone, w.Address, fields, nonNil(w.Tags), w.Active,
			w.CreatedBy, w.UpdatedBy, w.CreatedAt, w.UpdatedAt)
	}

	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for range workers {
			var inserted bool
			w, err := scanWorker(results.QueryRow(), &inserted)
			if err != nil {
				_ = results.Close()
				return err
			}
			if inserted {
				result.Created = append(result.Created, w)
			} else {
				result.Updated = append(result.Updated, w)
			}
		}
		return results.Close()
	})
	if err != nil {
		return service.ImportResult{}, mapWorkerError("upsert workers", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) (service.Worker, error) {
	return r.one(ctx, "delete worker", `DELETE FROM workers WHERE worker_id = $1 RETURNING `+workerColumns, id)
}

func (r *PostgresRepository) List(ctx context.Context, filter service.Filter) ([]service.Worker, int, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return nil, 0, err
	}

	const where = `
WHERE ($1::boolean OR tags && $2::text[])
  AND ($3::boolean IS NULL OR active = $3)
  AND ($4 = '' OR LOWER(name) LIKE '%' || LOWER($4) || '%' OR identification LIKE $4 || '%')`
	args := []any{filter.AllTags, nonNil(filter.Tags), filter.Active, filter.Search}

	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	var (
		total int
		out   = []service.Worker{}
	)
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM workers`+where, args...).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT `+workerColumns+` FROM workers`+where+`
ORDER BY name, worker_id
LIMIT $5 OFFSET $6`, append(args, limit, filter.Skip)...)
		if err != nil {
			return err
		}
		out, err = collectWorkers(rows)
		return err
	})
	if err != nil {
		return nil, 0, persistence.MapError("list workers", err)
	}
	return out, total, nil
}

func (r *PostgresRepository) one(ctx context.Context, op, sql string, args ...any) (service.Worker, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return service.Worker{}, err
	}
	var out service.Worker
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanWorker(tx.QueryRow(ctx, sql, args...), nil)
		return scanErr
	})
	if err != nil {
		return service.Worker{}, mapWorkerError(op, err)
	}
	return out, nil
}

func (r *PostgresRepository) many(ctx context.Context, op, sql string, args ...any) ([]service.Worker, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return nil, err
	}
	var out []service.Worker
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		out, err = collectWorkers(rows)
		return err
	})
	if err != nil {
		return nil, persistence.MapError(op, err)
	}
	return out, nil
}

func collectWorkers(rows pgx.Rows) ([]service.Worker, error) {
	defer rows.Close()
	out := []service.Worker{}
	for rows.Next() {
		w, err := scanWorker(rows, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// scanWorker reads workerColumns; a non-nil inserted also consumes the trailing upsert flag.
func scanWorker(row pgx.Row, inserted *bool) (service.Worker, error) {
	var (
		w      service.Worker
		fields []byte
	)
	dest := []any{&w.ID, &w.Name, &w.Identification, &w.City, &w.Phone, &w.Address, &fields, &w.Tags,
		&w.Active, &w.CreatedBy, &w.UpdatedBy, &w.CreatedAt, &w.UpdatedAt}
	if inserted != nil {
		dest = append(dest, inserted)
	}
	if err := row.Scan(dest...); err != nil {
		return service.Worker{}, err
	}
	w.Fields = []companysvc.FieldValue{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &w.Fields); err != nil {
			return service.Worker{}, fmt.Errorf("decode worker %s fields: %w", w.ID, err)
		}
	}
	return w, nil
}

func encodeFields(values []companysvc.FieldValue) ([]byte, error) {
	if values == nil {
		values = []companysvc.FieldValue{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode worker fields: %w", err)
	}
	return raw, nil
}

func mapWorkerError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return service.ErrNotFound
	case persistence.IsUniqueViolation(err) && persistence.ConstraintName(err) == identificationConstraint:
		return service.ErrDuplicate
	default:
		return persistence.MapError(op, err)
	}
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
