package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/harmony-hq/harmony/domains/stalls/be/service"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

const stallColumns = `stall_id, company_id, name, description, ays, branch, month, year, customer,
	customer_name, workers, stage, tag, created_by, updated_by, created_at, updated_at`

// PostgresRepository stores stalls in the company schema with workers as a JSONB array.
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

func (r *PostgresRepository) Create(ctx context.Context, stall service.Stall) (service.Stall, error) {
	workers, err := encodeWorkers(stall.Workers)
	if err != nil {
		return service.Stall{}, err
	}
	return r.one(ctx, "create stall", `
INSERT INTO stalls (`+stallColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING `+stallColumns,
		stall.ID, stall.Company, stall.Name, stall.Description, stall.Ays, stall.Branch, stall.Month,
		stall.Year, stall.Customer, stall.CustomerName, workers, stall.Stage, stall.Tag,
		stall.CreatedBy, stall.UpdatedBy, stall.CreatedAt, stall.UpdatedAt)
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Stall, error) {
	return r.one(ctx, "get stall", `SELECT `+stallColumns+` FROM stalls WHERE stall_id = $1`, id)
}

func (r *PostgresRepository) Update(ctx context.Context, stall service.Stall) (service.Stall, error) {
	return r.one(ctx, "update stall", `
UPDATE stalls SET name = $2, description = $3, ays = $4, branch = $5, stage = $6, tag = $7,
	updated_by = $8, updated_at = $9
WHERE stall_id = $1
RETURNING `+stallColumns,
		stall.ID, stall.Name, stall.Description, stall.Ays, stall.Branch, stall.Stage, stall.Tag,
		stall.UpdatedBy, stall.UpdatedAt)
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) (service.Stall, error) {
	return r.one(ctx, "delete stall", `DELETE FROM stalls WHERE stall_id = $1 RETURNING `+stallColumns, id)
}

func (r *PostgresRepository) AppendWorker(ctx context.Context, id uuid.UUID, worker service.StallWorker) (service.Stall, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return service.Stall{}, err
	}
	doc, err := json.Marshal(worker)
	if err != nil {
		return service.Stall{}, fmt.Errorf("encode stall worker: %w", err)
	}

	var out service.Stall
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		current, err := scanStall(tx.QueryRow(ctx, `SELECT `+stallColumns+` FROM stalls WHERE stall_id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if _, exists := current.Worker(worker.ID); exists {
			return service.ErrWorkerAssigned
		}
		out, err = scanStall(tx.QueryRow(ctx, `
UPDATE stalls SET workers = workers || jsonb_build_array($2::jsonb), updated_by = $3, updated_at = $4
WHERE stall_id = $1
RETURNING `+stallColumns, id, doc, worker.UpdatedBy, worker.UpdatedAt))
		return err
	})
	if err != nil {
		return service.Stall{}, mapStallError("assign stall worker", err)
	}
	return out, nil
}

// UpdateWorkerPointer rewrites only the pointer keys of the matching workers element.
// The containment predicate makes a missing (stall, worker) pair update zero rows.
func (r *PostgresRepository) UpdateWorkerPointer(ctx context.Context, id uuid.UUID, workerID string, pointer service.Pointer, updatedBy, updatedAt string) (service.Stall, error) {
	sequence, err := json.Marshal(pointer.Sequence)
	if err != nil {
		return service.Stall{}, fmt.Errorf("encode sequence: %w", err)
	}
	if pointer.Sequence == nil {
		sequence = []byte("[]")
	}

	stall, err := r.one(ctx, "update worker pointer", `
UPDATE stalls SET workers = (
	SELECT jsonb_agg(
		CASE WHEN elem->>'id' = $2
			THEN elem || jsonb_build_object('sequence', $3::jsonb, 'index', $4::int, 'jump', $5::int,
				'updatedBy', $6::text, 'updatedAt', $7::text)
			ELSE elem
		END ORDER BY ord)
	FROM jsonb_array_elements(workers) WITH ORDINALITY AS w(elem, ord)
), updated_by = $6, updated_at = $7
WHERE stall_id = $1 AND workers @> jsonb_build_array(jsonb_build_object('id', $2::text))
RETURNING `+stallColumns, id, workerID, sequence, pointer.Index, pointer.Jump, updatedBy, updatedAt)
	if errors.Is(err, service.ErrNotFound) {
		return service.Stall{}, service.ErrWorkerNotFound
	}
	return stall, err
}

func (r *PostgresRepository) RemoveWorker(ctx context.Context, id uuid.UUID, workerID string) (service.Stall, error) {
	stall, err := r.one(ctx, "remove stall worker", `
UPDATE stalls SET workers = COALESCE((
	SELECT jsonb_agg(elem ORDER BY ord)
	FROM jsonb_array_elements(workers) WITH ORDINALITY AS w(elem, ord)
	WHERE elem->>'id' <> $2
), '[]'::jsonb)
WHERE stall_id = $1 AND workers @> jsonb_build_array(jsonb_build_object('id', $2::text))
RETURNING `+stallColumns, id, workerID)
	if errors.Is(err, service.ErrNotFound) {
		return service.Stall{}, service.ErrWorkerNotFound
	}
	return stall, err
}

func (r *PostgresRepository) ListByCustomerAndPeriod(ctx context.Context, customer string, period service.Period) ([]service.Stall, error) {
	return r.many(ctx, "list stalls by customer", `
SELECT `+stallColumns+` FROM stalls
WHERE customer = $1
  AND (cardinality($2::text[]) = 0 OR month = ANY($2))
  AND (cardinality($3::text[]) = 0 OR year = ANY($3))
ORDER BY name`, customer, nonNil(period.Months), nonNil(period.Years))
}

func (r *PostgresRepository) ListByPeriod(ctx context.Context, period service.Period) ([]service.Stall, error) {
	return r.many(ctx, "list stalls by period", `
SELECT `+stallColumns+` FROM stalls
WHERE (cardinality($1::text[]) = 0 OR month = ANY($1))
  AND (cardinality($2::text[]) = 0 OR year = ANY($2))
ORDER BY name`, nonNil(period.Months), nonNil(period.Years))
}

func (r *PostgresRepository) one(ctx context.Context, op, sql string, args ...any) (service.Stall, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return service.Stall{}, err
	}
	var out service.Stall
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanStall(tx.QueryRow(ctx, sql, args...))
		return scanErr
	})
	if err != nil {
		return service.Stall{}, mapStallError(op, err)
	}
	return out, nil
}

func (r *PostgresRepository) many(ctx context.Context, op, sql string, args ...any) ([]service.Stall, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return nil, err
	}
	out := []service.Stall{}
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			stall, err := scanStall(rows)
			if err != nil {
				return err
			}
			out = append(out, stall)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, persistence.MapError(op, err)
	}
	return out, nil
}

func scanStall(row pgx.Row) (service.Stall, error) {
	var (
		s       service.Stall
		workers []byte
	)
	if err := row.Scan(&s.ID, &s.Company, &s.Name, &s.Description, &s.Ays, &s.Branch, &s.Month, &s.Year,
		&s.Customer, &s.CustomerName, &workers, &s.Stage, &s.Tag, &s.CreatedBy, &s.UpdatedBy,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return service.Stall{}, err
	}
	decoded, err := decodeWorkers(workers)
	if err != nil {
		return service.Stall{}, fmt.Errorf("stall %s: %w", s.ID, err)
	}
	s.Workers = decoded
	return s, nil
}

// decodeWorkers fails on malformed stored documents instead of yielding zero values.
func decodeWorkers(raw []byte) ([]service.StallWorker, error) {
	out := []service.StallWorker{}
	if len(raw) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode stall workers: %w", err)
	}
	for i, w := range out {
		if w.ID == "" {
			return nil, fmt.Errorf("decode stall workers: element %d has no id", i)
		}
	}
	return out, nil
}

func encodeWorkers(workers []service.StallWorker) ([]byte, error) {
	if workers == nil {
		workers = []service.StallWorker{}
	}
	raw, err := json.Marshal(workers)
	if err != nil {
		return nil, fmt.Errorf("encode stall workers: %w", err)
	}
	return raw, nil
}

func mapStallError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return service.ErrNotFound
	case errors.Is(err, service.ErrWorkerAssigned):
		return err
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
