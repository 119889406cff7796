// Package service is the company directory: company records, their definitions, and the
// routing from a company id to its isolated schema.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/domains/sequences/be/engine"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/tenant"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

var (
	ErrNotFound           = fmt.Errorf("company %w", apperr.ErrNotFound)
	ErrDefinitionNotFound = fmt.Errorf("company definition %w", apperr.ErrNotFound)
	ErrDatabaseTaken      = fmt.Errorf("company database name: %w", apperr.ErrAlreadyExists)
)

// Field types accepted in custom attribute schemas.
const (
	FieldText    = "text"
	FieldNumber  = "number"
	FieldDate    = "date"
	FieldSelect  = "select"
	FieldBoolean = "boolean"
)

// FieldScope selects which entity a custom field applies to.
type FieldScope string

const (
	ScopeWorker   FieldScope = "worker"
	ScopeCustomer FieldScope = "customer"
)

// Field describes one custom attribute of workers or customers.
type Field struct {
	ID       string   `json:"id"`
	Name     string   `json:"name" validate:"required"`
	Type     string   `json:"type" validate:"required,oneof=text number date select boolean"`
	Options  []string `json:"options"`
	Size     int      `json:"size" validate:"min=0"`
	Required bool     `json:"required"`
	Active   bool     `json:"active"`
}

// Position is a job position with its yearly value.
type Position struct {
	ID    string  `json:"id"`
	Name  string  `json:"name" validate:"required"`
	Value float64 `json:"value" validate:"min=0"`
	Year  string  `json:"year" validate:"omitempty,year"`
}

// Convention is a calendar legend entry (e.g. vacation, sick leave).
type Convention struct {
	ID           string `json:"id"`
	Name         string `json:"name" validate:"required"`
	Color        string `json:"color"`
	Abbreviation string `json:"abbreviation"`
	Keep         bool   `json:"keep"`
}

// Sequence is a named rotation pattern.
type Sequence struct {
	ID    string        `json:"id"`
	Name  string        `json:"name" validate:"required"`
	Steps []engine.Step `json:"steps" validate:"required,min=1"`
}

// Tag labels workers or customers for scoped access.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color"`
	Scope string `json:"scope" validate:"required,oneof=worker customer"`
}

// Company is a tenant record.
type Company struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	DatabaseName   string       `json:"databaseName"`
	SchemaName     string       `json:"-"`
	Website        string       `json:"website"`
	WorkerFields   []Field      `json:"workerFields"`
	CustomerFields []Field      `json:"customerFields"`
	Positions      []Position   `json:"positions"`
	Conventions    []Convention `json:"conventions"`
	Sequences      []Sequence   `json:"sequences"`
	Tags           []Tag        `json:"tags"`
	PrimaryColor   string       `json:"primaryColor"`
	SecondaryColor string       `json:"secondaryColor"`
	Logo           string       `json:"logo"`
	Active         bool         `json:"active"`
	CreatedBy      string       `json:"createdBy"`
	UpdatedBy      string       `json:"updatedBy"`
	CreatedAt      string       `json:"createdAt"`
	UpdatedAt      string       `json:"updatedAt"`
}

// Space is the routing entry for the company.
func (c Company) Space() tenant.Space {
	return tenant.Space{CompanyID: c.ID, CompanyName: c.Name, DatabaseName: c.DatabaseName, SchemaName: c.SchemaName}
}

// Fields returns the custom fields for scope.
func (c Company) Fields(scope FieldScope) []Field {
	if scope == ScopeCustomer {
		return c.CustomerFields
	}
	return c.WorkerFields
}

// CreateInput is the payload for a new company. DatabaseName defaults to the name.
type CreateInput struct {
	Name           string `json:"name" yaml:"name" validate:"required"`
	DatabaseName   string `json:"databaseName" yaml:"databaseName"`
	Website        string `json:"website" yaml:"website" validate:"omitempty,url"`
	PrimaryColor   string `json:"primaryColor" yaml:"primaryColor"`
	SecondaryColor string `json:"secondaryColor" yaml:"secondaryColor"`
	Logo           string `json:"logo" yaml:"logo"`
}

// UpdateInput carries mutable company fields; nil leaves a field unchanged.
type UpdateInput struct {
	Name           *string `json:"name"`
	Website        *string `json:"website"`
	PrimaryColor   *string `json:"primaryColor"`
	SecondaryColor *string `json:"secondaryColor"`
	Logo           *string `json:"logo"`
	Active         *bool   `json:"active"`
}

// ListOptions controls pagination.
type ListOptions struct {
	Page     int
	PageSize int
	Active   *bool
}

// ListResult wraps a page of companies.
type ListResult struct {
	Companies  []Company `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalItems int       `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}

// Repository abstracts the directory tables in the root schema.
type Repository interface {
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Create(ctx context.Context, c Company) (Company, error)
	Get(ctx context.Context, id uuid.UUID) (Company, error)
	// Mutate loads the company, applies fn and stores the result atomically.
	Mutate(ctx context.Context, id uuid.UUID, fn func(*Company) error) (Company, error)
	Delete(ctx context.Context, id uuid.UUID) (Company, error)
}

// SchemaProvisioner creates the isolated schema a company's records live in.
type SchemaProvisioner interface {
	EnsureCompanySchema(ctx context.Context, schemaName string) error
}

// Service implements the company directory.
type Service struct {
	repo        Repository
	provisioner SchemaProvisioner
	clock       *auditstamp.Clock
	validate    *validation.Validator
	documents   *persistence.DocumentValidator
	rootSchema  string
}

// New constructs a Service.
func New(repo Repository, provisioner SchemaProvisioner, clock *auditstamp.Clock, validate *validation.Validator, documents *persistence.DocumentValidator, rootSchema string) *Service {
	if repo == nil {
		panic("companies repository is required")
	}
	if provisioner == nil {
		panic("schema provisioner is required")
	}
	if clock == nil || validate == nil || documents == nil {
		panic("clock, validator and document validator are required")
	}
	if strings.TrimSpace(rootSchema) == "" {
		panic("root schema is required")
	}
	return &Service{repo: repo, provisioner: provisioner, clock: clock, validate: validate, documents: documents, rootSchema: rootSchema}
}

// GetCompanyDatabase resolves a company id to its schema. Unknown or inactive companies
// fail with apperr.ErrTenantNotFound.
func (s *Service) GetCompanyDatabase(ctx context.Context, companyID uuid.UUID) (tenant.Space, error) {
	c, err := s.repo.Get(ctx, companyID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return tenant.Space{}, fmt.Errorf("company %s: %w", companyID, apperr.ErrTenantNotFound)
		}
		return tenant.Space{}, err
	}
	if !c.Active {
		return tenant.Space{}, fmt.Errorf("company %s inactive: %w", companyID, apperr.ErrTenantNotFound)
	}
	return c.Space(), nil
}

// List returns a page of companies.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}
	return s.repo.List(ctx, opts)
}

// Create provisions the company schema and stores the directory entry.
func (s *Service) Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Company, error) {
	if err := s.validate.Struct(input); err != nil {
		return Company{}, err
	}
	dbName := strings.TrimSpace(input.DatabaseName)
	if dbName == "" {
		dbName = input.Name
	}
	dbName = tenant.ToSnake(dbName)
	if strings.Trim(dbName, "_") == "" {
		return Company{}, apperr.NewValidationError(map[string]string{"databaseName": "must contain letters or digits"})
	}

	actor, stamp := audit.ActorName(), s.clock.Stamp()
	c := Company{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(input.Name),
		DatabaseName:   dbName,
		SchemaName:     tenant.BuildSchemaName(s.rootSchema, dbName),
		Website:        input.Website,
		WorkerFields:   []Field{},
		CustomerFields: []Field{},
		Positions:      []Position{},
		Conventions:    []Convention{},
		Sequences:      []Sequence{},
		Tags:           []Tag{},
		PrimaryColor:   input.PrimaryColor,
		SecondaryColor: input.SecondaryColor,
		Logo:           input.Logo,
		Active:         true,
		CreatedBy:      actor,
		UpdatedBy:      actor,
		CreatedAt:      stamp,
		UpdatedAt:      stamp,
	}

	if err := s.provisioner.EnsureCompanySchema(ctx, c.SchemaName); err != nil {
		return Company{}, apperr.Storage("provision company schema", err)
	}
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return Company{}, ErrDatabaseTaken
		}
		return Company{}, err
	}
	return created, nil
}

// Get returns a company by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Company, error) {
	return s.repo.Get(ctx, id)
}

// Update changes the company's descriptive fields.
func (s *Service) Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Company, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return Company{}, apperr.NewValidationError(map[string]string{"name": "is required"})
	}
	return s.mutate(ctx, audit, id, func(c *Company) error {
		if input.Name != nil {
			c.Name = strings.TrimSpace(*input.Name)
		}
		if input.Website != nil {
			c.Website = *input.Website
		}
		if input.PrimaryColor != nil {
			c.PrimaryColor = *input.PrimaryColor
		}
		if input.SecondaryColor != nil {
			c.SecondaryColor = *input.SecondaryColor
		}
		if input.Logo != nil {
			c.Logo = *input.Logo
		}
		if input.Active != nil {
			c.Active = *input.Active
		}
		return nil
	})
}

// Delete removes the directory entry. The company schema is kept for recovery.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (Company, error) {
	return s.repo.Delete(ctx, id)
}

// ActiveFields returns the active custom fields of scope for the company.
func (s *Service) ActiveFields(ctx context.Context, companyID uuid.UUID, scope FieldScope) ([]Field, error) {
	c, err := s.repo.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]Field, 0, len(c.Fields(scope)))
	for _, f := range c.Fields(scope) {
		if f.Active {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Service) mutate(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, fn func(*Company) error) (Company, error) {
	stamp := s.clock.Stamp()
	return s.repo.Mutate(ctx, id, func(c *Company) error {
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedBy = audit.ActorName()
		c.UpdatedAt = stamp
		return nil
	})
}
