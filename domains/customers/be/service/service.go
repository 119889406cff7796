// Package service manages a company's customers.
//
// Every read is filtered by the caller's customer tag scope and every write is authorized
// against it. Custom field values are checked against the company's customer field
// definitions before anything is stored.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/domains/access/be/tagscope"
	companysvc "github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	platformlogging "github.com/harmony-hq/harmony/platform/go/logging"
	"github.com/harmony-hq/harmony/platform/go/notify"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/tenant"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

const logType = "customer"

// Errors returned by the customer service.
var (
	ErrNotFound       = fmt.Errorf("customer %w", apperr.ErrNotFound)
	ErrDuplicate      = fmt.Errorf("customer identification %w", apperr.ErrAlreadyExists)
	ErrCompanyMissing = fmt.Errorf("company space missing from context: %w", apperr.ErrTenantNotFound)
)

// Customer is a client of the company whose stalls are staffed by workers.
type Customer struct {
	ID             uuid.UUID               `json:"id"`
	Name           string                  `json:"name"`
	Identification string                  `json:"identification"`
	City           string                  `json:"city"`
	Contact        string                  `json:"contact"`
	Phone          string                  `json:"phone"`
	Address        string                  `json:"address"`
	Fields         []companysvc.FieldValue `json:"fields"`
	Tags           []string                `json:"tags"`
	Branches       []string                `json:"branches"`
	Active         bool                    `json:"active"`
	CreatedBy      string                  `json:"createdBy"`
	UpdatedBy      string                  `json:"updatedBy"`
	CreatedAt      string                  `json:"createdAt"`
	UpdatedAt      string                  `json:"updatedAt"`
}

// ScopeTags exposes the customer's tags to the scope filter.
func (c Customer) ScopeTags() []string { return c.Tags }

// CreateInput is the payload for a new customer.
type CreateInput struct {
	Name           string                  `json:"name" validate:"required"`
	Identification string                  `json:"identification" validate:"required"`
	City           string                  `json:"city"`
	Contact        string                  `json:"contact"`
	Phone          string                  `json:"phone"`
	Address        string                  `json:"address"`
	Fields         []companysvc.FieldValue `json:"fields"`
	Tags           []string                `json:"tags"`
	Branches       []string                `json:"branches"`
}

// UpdateInput carries the mutable customer fields; nil leaves a field unchanged.
type UpdateInput struct {
	Name           *string                  `json:"name" validate:"omitempty,min=1"`
	Identification *string                  `json:"identification" validate:"omitempty,min=1"`
	City           *string                  `json:"city"`
	Contact        *string                  `json:"contact"`
	Phone          *string                  `json:"phone"`
	Address        *string                  `json:"address"`
	Fields         *[]companysvc.FieldValue `json:"fields"`
	Tags           *[]string                `json:"tags"`
	Branches       *[]string                `json:"branches"`
	Active         *bool                    `json:"active"`
}

// Filter narrows a repository listing. AllTags disables the tag predicate.
type Filter struct {
	Search  string
	Active  *bool
	AllTags bool
	Tags    []string
	Limit   int
	Skip    int
}

// ListOptions are the caller-facing listing parameters.
type ListOptions struct {
	Search string
	Active *bool
	Limit  int
	Skip   int
}

// ListResult is one page of customers.
type ListResult struct {
	Customers []Customer `json:"items"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Skip      int        `json:"skip"`
}

// Repository abstracts persistence. Implementations scope every call to the company space on ctx.
type Repository interface {
	Create(ctx context.Context, customer Customer) (Customer, error)
	Get(ctx context.Context, id uuid.UUID) (Customer, error)
	Update(ctx context.Context, customer Customer) (Customer, error)
	Delete(ctx context.Context, id uuid.UUID) (Customer, error)
	List(ctx context.Context, filter Filter) ([]Customer, int, error)
}

// FieldValidator checks custom field values against the company's definitions.
type FieldValidator interface {
	ValidateFieldValues(ctx context.Context, companyID uuid.UUID, scope companysvc.FieldScope, values []companysvc.FieldValue) error
}

// AuditLog is the write-only audit sink.
type AuditLog interface {
	RecordFor(ctx context.Context, audit requesttrace.AuditInfo, entryType, message string) error
}

// Config wires the service. Log, Notifier and Logger are optional.
type Config struct {
	Repo      Repository
	Fields    FieldValidator
	Log       AuditLog
	Notifier  notify.Publisher
	Clock     *auditstamp.Clock
	Validator *validation.Validator
	Logger    *zap.Logger
}

// Service is the customer catalogue of a company.
type Service struct {
	repo     Repository
	fields   FieldValidator
	log      AuditLog
	notifier notify.Publisher
	clock    *auditstamp.Clock
	validate *validation.Validator
	logger   *zap.Logger

	effects sync.WaitGroup
}

// New constructs a Service.
func New(cfg Config) *Service {
	if cfg.Repo == nil {
		panic("customers repository is required")
	}
	if cfg.Fields == nil {
		panic("field validator is required")
	}
	if cfg.Clock == nil {
		panic("clock is required")
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		repo:     cfg.Repo,
		fields:   cfg.Fields,
		log:      cfg.Log,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		validate: cfg.Validator,
		logger:   cfg.Logger,
	}
}

// List returns the customers visible under scope.
func (s *Service) List(ctx context.Context, scope tagscope.Scope, opts ListOptions) (ListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}
	all, tags := tagscope.SQLScope(scope)
	items, total, err := s.repo.List(ctx, Filter{
		Search:  strings.TrimSpace(opts.Search),
		Active:  opts.Active,
		AllTags: all,
		Tags:    tags,
		Limit:   opts.Limit,
		Skip:    opts.Skip,
	})
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Customers: items, Total: total, Limit: opts.Limit, Skip: opts.Skip}, nil
}

// Get returns one customer, or ErrUnauthorized when it lies outside scope.
func (s *Service) Get(ctx context.Context, scope tagscope.Scope, id uuid.UUID) (Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := tagscope.Authorize(scope, customer.Tags); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// Create stores a new customer. Restricted callers must tag it inside their own scope.
func (s *Service) Create(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, input CreateInput) (Customer, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return Customer{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Customer{}, err
	}
	if err := tagscope.Authorize(scope, input.Tags); err != nil {
		return Customer{}, err
	}
	if err := s.fields.ValidateFieldValues(ctx, space.CompanyID, companysvc.ScopeCustomer, input.Fields); err != nil {
		return Customer{}, err
	}

	stamp := s.clock.Stamp()
	customer, err := s.repo.Create(ctx, Customer{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(input.Name),
		Identification: strings.TrimSpace(input.Identification),
		City:           input.City,
		Contact:        input.Contact,
		Phone:          input.Phone,
		Address:        input.Address,
		Fields:         nonNilValues(input.Fields),
		Tags:           nonNil(input.Tags),
		Branches:       nonNil(input.Branches),
		Active:         true,
		CreatedBy:      audit.ActorName(),
		UpdatedBy:      audit.ActorName(),
		CreatedAt:      stamp,
		UpdatedAt:      stamp,
	})
	if err != nil {
		return Customer{}, err
	}

	s.sideEffects(ctx, audit, fmt.Sprintf("created customer %s", customer.Name), notify.CustomerCreated, customer)
	return customer, nil
}

// Update applies input to a customer inside scope. Retagging is authorized against the new tags too.
func (s *Service) Update(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID, input UpdateInput) (Customer, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return Customer{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Customer{}, err
	}
	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return Customer{}, err
	}

	next := current
	if input.Name != nil {
		next.Name = strings.TrimSpace(*input.Name)
	}
	if input.Identification != nil {
		next.Identification = strings.TrimSpace(*input.Identification)
	}
	if input.City != nil {
		next.City = *input.City
	}
	if input.Contact != nil {
		next.Contact = *input.Contact
	}
	if input.Phone != nil {
		next.Phone = *input.Phone
	}
	if input.Address != nil {
		next.Address = *input.Address
	}
	if input.Branches != nil {
		next.Branches = nonNil(*input.Branches)
	}
	if input.Active != nil {
		next.Active = *input.Active
	}
	if input.Tags != nil {
		if err := tagscope.Authorize(scope, *input.Tags); err != nil {
			return Customer{}, err
		}
		next.Tags = nonNil(*input.Tags)
	}
	if input.Fields != nil {
		if err := s.fields.ValidateFieldValues(ctx, space.CompanyID, companysvc.ScopeCustomer, *input.Fields); err != nil {
			return Customer{}, err
		}
		next.Fields = nonNilValues(*input.Fields)
	}
	next.UpdatedBy = audit.ActorName()
	next.UpdatedAt = s.clock.Stamp()

	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		return Customer{}, err
	}

	s.sideEffects(ctx, audit, fmt.Sprintf("updated customer %s", updated.Name), notify.CustomerUpdated, updated)
	return updated, nil
}

// Delete removes a customer inside scope and returns its last state.
func (s *Service) Delete(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID) (Customer, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return Customer{}, err
	}
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return Customer{}, err
	}

	s.sideEffects(ctx, audit, fmt.Sprintf("deleted customer %s", removed.Name), notify.CustomerDeleted, removed)
	return removed, nil
}

// Close waits for pending audit and notification side effects.
func (s *Service) Close() {
	s.effects.Wait()
}

func (s *Service) sideEffects(ctx context.Context, audit requesttrace.AuditInfo, message, event string, data any) {
	detached := context.WithoutCancel(ctx)
	logger := platformlogging.FromContextOr(ctx, s.logger)
	company := ""
	if space, ok := tenant.FromContext(ctx); ok {
		company = space.CompanyID.String()
	}

	s.effects.Add(1)
	go func() {
		defer s.effects.Done()
		if s.log != nil {
			if err := s.log.RecordFor(detached, audit, logType, message); err != nil {
				logger.Warn("failed to record audit entry", zap.String("type", logType), zap.Error(err))
			}
		}
		s.notifier.Publish(detached, notify.Event{
			Event:    event,
			Data:     data,
			UserName: audit.ActorName(),
			Company:  company,
		})
	}()
}

func requireCompanySpace(ctx context.Context) (tenant.Space, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return tenant.Space{}, ErrCompanyMissing
	}
	return space, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilValues(values []companysvc.FieldValue) []companysvc.FieldValue {
	if values == nil {
		return []companysvc.FieldValue{}
	}
	return values
}
