package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	companysvc "github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/domains/customers/be/service"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

const customerColumns = `customer_id, name, identification, city, contact, phone, address, fields, tags,
	branches, active, created_by, updated_by, created_at, updated_at`

const identificationConstraint = "customers_identification_unique"

// PostgresRepository stores customers in the company schema.
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

func (r *PostgresRepository) Create(ctx context.Context, c service.Customer) (service.Customer, error) {
	fields, err := encodeFields(c.Fields)
	if err != nil {
		return service.Customer{}, err
	}
	return r.one(ctx, "create customer", `
INSERT INTO customers (`+customerColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING `+customerColumns,
		c.ID, c.Name, c.Identification, c.City, c.Contact, c.Phone, c.Address, fields, nonNil(c.Tags),
		nonNil(c.Branches), c.Active, c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt)
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Customer, error) {
	return r.one(ctx, "get customer", `SELECT `+customerColumns+` FROM customers WHERE customer_id = $1`, id)
}

func (r *PostgresRepository) Update(ctx context.Context, c service.Customer) (service.Customer, error) {
	fields, err := encodeFields(c.Fields)
	if err != nil {
		return service.Customer{}, err
	}
	return r.one(ctx, "update customer", `
UPDATE customers SET name = $2, identification = $3, city = $4, contact = $5, phone = $6, address = $7,
	fields = $8, tags = $9, branches = $10, active = $11, updated_by = $12, updated_at = $13
WHERE customer_id = $1
RETURNING `+customerColumns,
		c.ID, c.Name, c.Identification, c.City, c.Contact, c.Phone, c.Address, fields, nonNil(c.Tags),
		nonNil(c.Branches), c.Active, c.UpdatedBy, c.UpdatedAt)
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) (service.Customer, error) {
	return r.one(ctx, "delete customer", `DELETE FROM customers WHERE customer_id = $1 RETURNING `+customerColumns, id)
}

func (r *PostgresRepository) List(ctx context.Context, filter service.Filter) ([]service.Customer, int, error) {
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
		out   = []service.Customer{}
	)
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT `+customerColumns+` FROM customers`+where+`
ORDER BY name, customer_id
LIMIT $5 OFFSET $6`, append(args, limit, filter.Skip)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCustomer(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, persistence.MapError("list customers", err)
	}
	return out, total, nil
}

func (r *PostgresRepository) one(ctx context.Context, op, sql string, args ...any) (service.Customer, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return service.Customer{}, err
	}
	var out service.Customer
	err = r.db.WithCompany(ctx, space, func(tx pgx.Tx) error {
		var scanErr error
		out, scanErr = scanCustomer(tx.QueryRow(ctx, sql, args...))
		return scanErr
	})
	if err != nil {
		return service.Customer{}, mapCustomerError(op, err)
	}
	return out, nil
}

func scanCustomer(row pgx.Row) (service.Customer, error) {
	var (
		c      service.Customer
		fields []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Identification, &c.City, &c.Contact, &c.Phone, &c.Address,
		&fields, &c.Tags, &c.Branches, &c.Active, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt,
		&c.UpdatedAt); err != nil {
		return service.Customer{}, err
	}
	c.Fields = []companysvc.FieldValue{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &c.Fields); err != nil {
			return service.Customer{}, fmt.Errorf("decode customer %s fields: %w", c.ID, err)
		}
	}
	return c, nil
}

func encodeFields(values []companysvc.FieldValue) ([]byte, error) {
	if values == nil {
		values = []companysvc.FieldValue{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode customer fields: %w", err)
	}
	return raw, nil
}

func mapCustomerError(op string, err error) error {
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
