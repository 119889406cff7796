package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/persistence"
)

const companyColumns = `company_id, name, database_name, schema_name, website, worker_fields, customer_fields,
	positions, conventions, sequences, tags, primary_color, secondary_color, logo, active,
	created_by, updated_by, created_at, updated_at`

// PostgresRepository stores the company directory in the root schema.
// Definitions are JSONB arrays on the company row.
type PostgresRepository struct {
	db *persistence.CompanyDB
}

func NewPostgresRepository(db *persistence.CompanyDB) *PostgresRepository {
	if db == nil {
		panic("company db is required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	var (
		companies []service.Company
		total     int
	)
	err := r.db.WithRoot(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM companies WHERE ($1::boolean IS NULL OR active = $1)`, opts.Active).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
SELECT `+companyColumns+` FROM companies
WHERE ($1::boolean IS NULL OR active = $1)
ORDER BY name, company_id
LIMIT $2 OFFSET $3`, opts.Active, size, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCompany(rows)
			if err != nil {
				return err
			}
			companies = append(companies, c)
		}
		return rows.Err()
	})
	if err != nil {
		return service.ListResult{}, persistence.MapError("list companies", err)
	}
	if companies == nil {
		companies = []service.Company{}
	}

	return service.ListResult{
		Companies:  companies,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: (total + size - 1) / size,
	}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c service.Company) (service.Company, error) {
	docs, err := encodeDefinitions(c)
	if err != nil {
		return service.Company{}, err
	}
	var out service.Company
	err = r.db.WithRoot(ctx, func(tx pgx.Tx) error {
		out, err = scanCompany(tx.QueryRow(ctx, `
INSERT INTO companies (`+companyColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
RETURNING `+companyColumns,
			c.ID, c.Name, c.DatabaseName, c.SchemaName, c.Website, docs[0], docs[1], docs[2], docs[3],
			docs[4], docs[5], c.PrimaryColor, c.SecondaryColor, c.Logo, c.Active,
			c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt))
		return err
	})
	if err != nil {
		return service.Company{}, mapCompanyError("create company", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Company, error) {
	var out service.Company
	err := r.db.WithRoot(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanCompany(tx.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE company_id = $1`, id))
		return err
	})
	if err != nil {
		return service.Company{}, mapCompanyError("get company", err)
	}
	return out, nil
}

// Mutate locks the row with SELECT ... FOR UPDATE so concurrent definition edits serialize.
func (r *PostgresRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(*service.Company) error) (service.Company, error) {
	var out service.Company
	err := r.db.WithRoot(ctx, func(tx pgx.Tx) error {
		current, err := scanCompany(tx.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE company_id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(&current); err != nil {
			return err
		}
		docs, err := encodeDefinitions(current)
		if err != nil {
			return err
		}
		out, err = scanCompany(tx.QueryRow(ctx, `
UPDATE companies SET name = $2, website = $3, worker_fields = $4, customer_fields = $5, positions = $6,
	conventions = $7, sequences = $8, tags = $9, primary_color = $10, secondary_color = $11, logo = $12,
	active = $13, updated_by = $14, updated_at = $15
WHERE company_id = $1
RETURNING `+companyColumns,
			id, current.Name, current.Website, docs[0], docs[1], docs[2], docs[3], docs[4], docs[5],
			current.PrimaryColor, current.SecondaryColor, current.Logo, current.Active,
			current.UpdatedBy, current.UpdatedAt))
		return err
	})
	if err != nil {
		return service.Company{}, mapCompanyError("update company", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) (service.Company, error) {
	var out service.Company
	err := r.db.WithRoot(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanCompany(tx.QueryRow(ctx, `DELETE FROM companies WHERE company_id = $1 RETURNING `+companyColumns, id))
		return err
	})
	if err != nil {
		return service.Company{}, mapCompanyError("delete company", err)
	}
	return out, nil
}

func scanCompany(row pgx.Row) (service.Company, error) {
	var (
		c    service.Company
		docs [6][]byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.DatabaseName, &c.SchemaName, &c.Website, &docs[0], &docs[1],
		&docs[2], &docs[3], &docs[4], &docs[5], &c.PrimaryColor, &c.SecondaryColor, &c.Logo, &c.Active,
		&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return service.Company{}, err
	}
	targets := []any{&c.WorkerFields, &c.CustomerFields, &c.Positions, &c.Conventions, &c.Sequences, &c.Tags}
	for i, target := range targets {
		if err := json.Unmarshal(docs[i], target); err != nil {
			return service.Company{}, fmt.Errorf("decode company %s definitions: %w", c.ID, err)
		}
	}
	return c, nil
}

func encodeDefinitions(c service.Company) ([6][]byte, error) {
	var out [6][]byte
	values := []any{c.WorkerFields, c.CustomerFields, c.Positions, c.Conventions, c.Sequences, c.Tags}
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("encode company definitions: %w", err)
		}
		if string(raw) == "null" {
			raw = []byte("[]")
		}
		out[i] = raw
	}
	return out, nil
}

func mapCompanyError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrNotFound
	}
	if persistence.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w (%s)", op, apperr.ErrAlreadyExists, persistence.ConstraintName(err))
	}
	return persistence.MapError(op, err)
}

var _ service.Repository = (*PostgresRepository)(nil)
