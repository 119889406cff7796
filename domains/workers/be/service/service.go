// Package service manages a company's workers.
//
// Reads are filtered by the caller's worker tag scope and writes are authorized against
// it. Bulk imports upsert by identification so a payroll export can be replayed safely.
package service

import (
	"context"
	"errors"
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

const logType = "worker"

// MaxImport bounds the number of workers accepted by one Import call.
const MaxImport = 500

// Errors returned by the worker service.
var (
	ErrNotFound       = fmt.Errorf("worker %w", apperr.ErrNotFound)
	ErrDuplicate      = fmt.Errorf("worker identification %w", apperr.ErrAlreadyExists)
	ErrCompanyMissing = fmt.Errorf("company space missing from context: %w", apperr.ErrTenantNotFound)
)

// Worker is a member of the company's workforce.
type Worker struct {
	ID             uuid.UUID               `json:"id"`
	Name           string                  `json:"name"`
	Identification string                  `json:"identification"`
	City           string                  `json:"city"`
	Phone          string                  `json:"phone"`
	Address        string                  `json:"address"`
	Fields         []companysvc.FieldValue `json:"fields"`
	Tags           []string                `json:"tags"`
	Active         bool                    `json:"active"`
	CreatedBy      string                  `json:"createdBy"`
	UpdatedBy      string                  `json:"updatedBy"`
	CreatedAt      string                  `json:"createdAt"`
	UpdatedAt      string                  `json:"updatedAt"`
}

// ScopeTags exposes the worker's tags to the scope filter.
func (w Worker) ScopeTags() []string { return w.Tags }

// CreateInput is the payload for a new worker and one element of an import.
type CreateInput struct {
	Name           string                  `json:"name" validate:"required"`
	Identification string                  `json:"identification" validate:"required"`
	City           string                  `json:"city"`
	Phone          string                  `json:"phone"`
	Address        string                  `json:"address"`
	Fields         []companysvc.FieldValue `json:"fields"`
	Tags           []string                `json:"tags"`
}

// UpdateInput carries the mutable worker fields; nil leaves a field unchanged.
type UpdateInput struct {
	Name           *string                  `json:"name" validate:"omitempty,min=1"`
	Identification *string                  `json:"identification" validate:"omitempty,min=1"`
	City           *string                  `json:"city"`
	Phone          *string                  `json:"phone"`
	Address        *string                  `json:"address"`
	Fields         *[]companysvc.FieldValue `json:"fields"`
	Tags           *[]string                `json:"tags"`
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

// SearchOptions are the caller-facing search parameters. Query matches a name
// substring or an identification prefix.
type SearchOptions struct {
	Query  string
	Active *bool
	Limit  int
	Skip   int
}

// SearchResult is one page of workers.
type SearchResult struct {
	Workers []Worker `json:"items"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Skip    int      `json:"skip"`
}

// ImportResult splits an import into inserted and refreshed workers.
type ImportResult struct {
	Created []Worker `json:"created"`
	Updated []Worker `json:"updated"`
}

// Repository abstracts persistence. Implementations scope every call to the company space on ctx.
type Repository interface {
	Create(ctx context.Context, worker Worker) (Worker, error)
	Get(ctx context.Context, id uuid.UUID) (Worker, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Worker, error)
	GetByIdentifications(ctx context.Context, identifications []string) ([]Worker, error)
	Update(ctx context.Context, worker Worker) (Worker, error)
	Upsert(ctx context.Context, workers []Worker) (ImportResult, error)
	Delete(ctx context.Context, id uuid.UUID) (Worker, error)
	List(ctx context.Context, filter Filter) ([]Worker, int, error)
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

// Service is the worker registry of a company.
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
		panic("workers repository is required")
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

// Search pages through the workers visible under scope.
func (s *Service) Search(ctx context.Context, scope tagscope.Scope, opts SearchOptions) (SearchResult, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	if opts.Skip < 0 {
		opts.Skip = 0
	}
	all, tags := tagscope.SQLScope(scope)
	items, total, err := s.repo.List(ctx, Filter{
		Search:  strings.TrimSpace(opts.Query),
		Active:  opts.Active,
		AllTags: all,
		Tags:    tags,
		Limit:   opts.Limit,
		Skip:    opts.Skip,
	})
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Workers: items, Total: total, Limit: opts.Limit, Skip: opts.Skip}, nil
}

// Get returns one worker, or ErrUnauthorized when it lies outside scope.
func (s *Service) Get(ctx context.Context, scope tagscope.Scope, id uuid.UUID) (Worker, error) {
	worker, err := s.repo.Get(ctx, id)
	if err != nil {
		return Worker{}, err
	}
	if err := tagscope.Authorize(scope, worker.Tags); err != nil {
		return Worker{}, err
	}
	return worker, nil
}

// GetByIDs returns the workers with the given ids that are visible under scope.
// Unknown ids are skipped.
func (s *Service) GetByIDs(ctx context.Context, scope tagscope.Scope, ids []uuid.UUID) ([]Worker, error) {
	if len(ids) == 0 {
		return []Worker{}, nil
	}
	workers, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return tagscope.Filter(scope, workers), nil
}

// Create stores a new worker. Restricted callers must tag it inside their own scope.
func (s *Service) Create(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, input CreateInput) (Worker, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return Worker{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Worker{}, err
	}
	if err := tagscope.Authorize(scope, input.Tags); err != nil {
		return Worker{}, err
	}
	if err := s.fields.ValidateFieldValues(ctx, space.CompanyID, companysvc.ScopeWorker, input.Fields); err != nil {
		return Worker{}, err
	}

	worker, err := s.repo.Create(ctx, s.newWorker(audit, input, s.clock.Stamp()))
	if err != nil {
		return Worker{}, err
	}

	s.sideEffects(ctx, audit, fmt.Sprintf("created worker %s", worker.Name), notify.WorkerCreated, worker)
	return worker, nil
}

// Import creates or refreshes workers keyed by identification. Existing workers keep their id,
// active flag and creation stamp; every touched worker must be inside scope before anything is written.
func (s *Service) Import(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, inputs []CreateInput) (ImportResult, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	if len(inputs) == 0 {
		return ImportResult{}, apperr.NewValidationError(map[string]string{"workers": "must not be empty"})
	}
	if len(inputs) > MaxImport {
		return ImportResult{}, apperr.NewValidationError(map[string]string{"workers": fmt.Sprintf("must contain at most %d items", MaxImport)})
	}

	problems := apperr.FieldErrors{}
	seen := make(map[string]int, len(inputs))
	identifications := make([]string, 0, len(inputs))
	for i, input := range inputs {
		prefix := fmt.Sprintf("workers[%d]", i)
		if err := s.validate.Struct(input); err != nil {
			if !mergeValidation(problems, prefix, err) {
				return ImportResult{}, err
			}
			continue
		}
		id := strings.TrimSpace(input.Identification)
		if first, dup := seen[id]; dup {
			problems.Add(prefix+".identification", fmt.Sprintf("duplicates workers[%d]", first))
			continue
		}
		seen[id] = i
		identifications = append(identifications, id)

		if err := tagscope.Authorize(scope, input.Tags); err != nil {
			return ImportResult{}, err
		}
		if err := s.fields.ValidateFieldValues(ctx, space.CompanyID, companysvc.ScopeWorker, input.Fields); err != nil {
			if !mergeValidation(problems, prefix, err) {
				return ImportResult{}, err
			}
		}
	}
	if len(problems) > 0 {
		return ImportResult{}, &apperr.ValidationError{Fields: problems}
	}

	existing, err := s.repo.GetByIdentifications(ctx, identifications)
	if err != nil {
		return ImportResult{}, err
	}
	for _, w := range existing {
		if err := tagscope.Authorize(scope, w.Tags); err != nil {
			return ImportResult{}, fmt.Errorf("worker %s: %w", w.Identification, err)
		}
	}

	stamp := s.clock.Stamp()
	batch := make([]Worker, 0, len(inputs))
	for _, input := range inputs {
		batch = append(batch, s.newWorker(audit, input, stamp))
	}
	result, err := s.repo.Upsert(ctx, batch)
	if err != nil {
		return ImportResult{}, err
	}

	s.sideEffects(ctx, audit,
		fmt.Sprintf("imported workers (%d created, %d updated)", len(result.Created), len(result.Updated)),
		notify.WorkerUpdated, result)
	return result, nil
}

// Update applies input to a worker inside scope. Retagging is authorized against the new tags too.
func (s *Service) Update(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID, input UpdateInput) (Worker, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return Worker{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Worker{}, err
	}
	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return Worker{}, err
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
	if input.Phone != nil {
		next.Phone = *input.Phone
	}
	if input.Address != nil {
		next.Address = *input.Address
	}
	if input.Active != nil {
		next.Active = *input.Active
	}
	if input.Tags != nil {
		if err := tagscope.Authorize(scope, *input.Tags); err != nil {
			return Worker{}, err
		}
		next.Tags = nonNil(*input.Tags)
	}
	if input.Fields != nil {
		if err := s.fields.ValidateFieldValues(ctx, space.CompanyID, companysvc.ScopeWorker, *input.Fields); err != nil {
			return Worker{}, err
		}
		next.Fields = nonNilValues(*input.Fields)
	}
	next.UpdatedBy = audit.ActorName()
	next.UpdatedAt = s.clock.Stamp()

	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		return Worker{}, err
	}

	s.sideEffects(ctx, audit, fmt.Sprintf("updated worker %s", updated.Name), notify.WorkerUpdated, updated)
	return updated, nil
}

// Delete removes a worker inside scope and returns its last state.
func (s *Service) Delete(ctx context.Context, audit requesttrace.AuditInfo, scope tagscope.Scope, id uuid.UUID) (Worker, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return Worker{}, err
	}
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return Worker{}, err
	}

	s.sideEffects(ctx, audit, fmt.Sprintf("deleted worker %s", removed.Name), notify.WorkerDeleted, removed)
	return removed, nil
}

// Close waits for pending audit and notification side effects.
func (s *Service) Close() {
	s.effects.Wait()
}

func (s *Service) newWorker(audit requesttrace.AuditInfo, input CreateInput, stamp string) Worker {
	return Worker{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(input.Name),
		Identification: strings.TrimSpace(input.Identification),
		City:           input.City,
		Phone:          input.Phone,
		Address:        input.Address,
		Fields:         nonNilValues(input.Fields),
		Tags:           nonNil(input.Tags),
		Active:         true,
		CreatedBy:      audit.ActorName(),
		UpdatedBy:      audit.ActorName(),
		CreatedAt:      stamp,
		UpdatedAt:      stamp,
	}
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

// mergeValidation copies a validation error into problems under prefix.
// It reports false when err is not a validation error.
func mergeValidation(problems apperr.FieldErrors, prefix string, err error) bool {
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	for field, messages := range ve.Fields {
		for _, msg := range messages {
			problems.Add(prefix+"."+field, msg)
		}
	}
	return true
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
