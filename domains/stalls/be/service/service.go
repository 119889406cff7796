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

// Errors returned by the assignment store.
var (
	ErrNotFound       = fmt.Errorf("stall %w", apperr.ErrNotFound)
	ErrWorkerNotFound = fmt.Errorf("stall worker %w", apperr.ErrNotFound)
	ErrWorkerAssigned = fmt.Errorf("worker already assigned to stall: %w", apperr.ErrAlreadyExists)
	ErrCompanyMissing = fmt.Errorf("company space missing from context: %w", apperr.ErrTenantNotFound)
)

// StallWorker is a worker's assignment to a stall together with its rotation pointer.
type StallWorker struct {
	ID             string        `json:"id" validate:"required"`
	Name           string        `json:"name" validate:"required"`
	Identification string        `json:"identification"`
	Position       string        `json:"position"`
	Sequence       []engine.Step `json:"sequence"`
	Index          int           `json:"index" validate:"min=0"`
	Jump           int           `json:"jump" validate:"min=0"`
	CreatedBy      string        `json:"createdBy"`
	UpdatedBy      string        `json:"updatedBy"`
	CreatedAt      string        `json:"createdAt"`
	UpdatedAt      string        `json:"updatedAt"`
}

// Stall is a physical work post for one customer and one month.
type Stall struct {
	ID           uuid.UUID     `json:"id"`
	Company      uuid.UUID     `json:"company"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Ays          string        `json:"ays"`
	Branch       string        `json:"branch"`
	Month        string        `json:"month"`
	Year         string        `json:"year"`
	Customer     string        `json:"customer"`
	CustomerName string        `json:"customerName"`
	Workers      []StallWorker `json:"workers"`
	Stage        int           `json:"stage"`
	Tag          string        `json:"tag"`
	CreatedBy    string        `json:"createdBy"`
	UpdatedBy    string        `json:"updatedBy"`
	CreatedAt    string        `json:"createdAt"`
	UpdatedAt    string        `json:"updatedAt"`
}

// Worker returns the assignment for workerID.
func (s Stall) Worker(workerID string) (StallWorker, bool) {
	for _, w := range s.Workers {
		if w.ID == workerID {
			return w, true
		}
	}
	return StallWorker{}, false
}

// CreateInput is the payload for a new stall.
type CreateInput struct {
	Name         string        `json:"name" validate:"required"`
	Description  string        `json:"description"`
	Ays          string        `json:"ays"`
	Branch       string        `json:"branch"`
	Month        string        `json:"month" validate:"required,month"`
	Year         string        `json:"year" validate:"required,year"`
	Customer     string        `json:"customer" validate:"required"`
	CustomerName string        `json:"customerName"`
	Stage        int           `json:"stage" validate:"min=0"`
	Tag          string        `json:"tag"`
	Workers      []StallWorker `json:"workers" validate:"dive"`
}

// UpdateInput carries the mutable stall fields; nil leaves a field unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Ays         *string
	Branch      *string
	Stage       *int
	Tag         *string
}

// Pointer is a worker's position in its rotation.
type Pointer struct {
	Sequence []engine.Step
	Index    int
	Jump     int
}

// Period selects stalls by month and year. Empty slices do not filter.
type Period struct {
	Months []string
	Years  []string
}

// Repository abstracts persistence. Implementations scope every call to the company space on ctx.
type Repository interface {
	Create(ctx context.Context, stall Stall) (Stall, error)
	Get(ctx context.Context, id uuid.UUID) (Stall, error)
	Update(ctx context.Context, stall Stall) (Stall, error)
	Delete(ctx context.Context, id uuid.UUID) (Stall, error)
	AppendWorker(ctx context.Context, id uuid.UUID, worker StallWorker) (Stall, error)
	UpdateWorkerPointer(ctx context.Context, id uuid.UUID, workerID string, pointer Pointer, updatedBy, updatedAt string) (Stall, error)
	RemoveWorker(ctx context.Context, id uuid.UUID, workerID string) (Stall, error)
	ListByCustomerAndPeriod(ctx context.Context, customer string, period Period) ([]Stall, error)
	ListByPeriod(ctx context.Context, period Period) ([]Stall, error)
}

// Service is the stall/worker assignment store.
type Service struct {
	repo      Repository
	clock     *auditstamp.Clock
	validate  *validation.Validator
	documents *persistence.DocumentValidator
}

// New constructs a Service.
func New(repo Repository, clock *auditstamp.Clock, validate *validation.Validator, documents *persistence.DocumentValidator) *Service {
	if repo == nil {
		panic("stalls repository is required")
	}
	if clock == nil {
		panic("clock is required")
	}
	if validate == nil {
		panic("validator is required")
	}
	if documents == nil {
		panic("document validator is required")
	}
	return &Service{repo: repo, clock: clock, validate: validate, documents: documents}
}

// Create stores a new stall with a generated id.
func (s *Service) Create(ctx context.Context, audit requesttrace.AuditInfo, input CreateInput) (Stall, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return Stall{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return Stall{}, err
	}

	actor, stamp := audit.ActorName(), s.clock.Stamp()
	workers := make([]StallWorker, 0, len(input.Workers))
	seen := map[string]struct{}{}
	for i, w := range input.Workers {
		if _, dup := seen[w.ID]; dup {
			return Stall{}, apperr.NewValidationError(map[string]string{fmt.Sprintf("workers[%d].id", i): "is duplicated"})
		}
		seen[w.ID] = struct{}{}
		w = stampWorker(w, actor, stamp)
		if err := s.checkWorker(ctx, w); err != nil {
			return Stall{}, err
		}
		workers = append(workers, w)
	}

	stall := Stall{
		ID:           uuid.New(),
		Company:      space.CompanyID,
		Name:         strings.TrimSpace(input.Name),
		Description:  input.Description,
		Ays:          input.Ays,
		Branch:       input.Branch,
		Month:        input.Month,
		Year:         input.Year,
		Customer:     input.Customer,
		CustomerName: input.CustomerName,
		Workers:      workers,
		Stage:        input.Stage,
		Tag:          input.Tag,
		CreatedBy:    actor,
		UpdatedBy:    actor,
		CreatedAt:    stamp,
		UpdatedAt:    stamp,
	}
	return s.repo.Create(ctx, stall)
}

// Get returns a stall by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Stall, error) {
	return s.repo.Get(ctx, id)
}

// Update changes the descriptive fields of a stall. Workers are managed separately.
func (s *Service) Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (Stall, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Stall{}, err
	}

	next := current
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return Stall{}, apperr.NewValidationError(map[string]string{"name": "is required"})
		}
		next.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		next.Description = *input.Description
	}
	if input.Ays != nil {
		next.Ays = *input.Ays
	}
	if input.Branch != nil {
		next.Branch = *input.Branch
	}
	if input.Stage != nil {
		if *input.Stage < 0 {
			return Stall{}, apperr.NewValidationError(map[string]string{"stage": "must be at least 0"})
		}
		next.Stage = *input.Stage
	}
	if input.Tag != nil {
		next.Tag = *input.Tag
	}
	next.UpdatedBy = audit.ActorName()
	next.UpdatedAt = s.clock.Stamp()

	return s.repo.Update(ctx, next)
}

// Delete removes a stall and returns its last state. Shifts are not touched.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (Stall, error) {
	return s.repo.Delete(ctx, id)
}

// AssignWorker appends an assignment. It does not materialize shifts.
func (s *Service) AssignWorker(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, worker StallWorker) (Stall, error) {
	if err := s.validate.Struct(worker); err != nil {
		return Stall{}, err
	}
	worker = stampWorker(worker, audit.ActorName(), s.clock.Stamp())
	if err := s.checkWorker(ctx, worker); err != nil {
		return Stall{}, err
	}
	return s.repo.AppendWorker(ctx, id, worker)
}

// UpdateWorkerPointer persists a worker's sequence, index and jump.
// A (stall, worker) pair with no assignment fails with ErrWorkerNotFound.
func (s *Service) UpdateWorkerPointer(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, workerID string, pointer Pointer) (Stall, error) {
	if len(pointer.Sequence) > 0 && (pointer.Index < 0 || pointer.Index >= len(pointer.Sequence)) {
		return Stall{}, fmt.Errorf("%w: index %d out of range [0,%d)", apperr.ErrInvalidSequence, pointer.Index, len(pointer.Sequence))
	}
	if pointer.Jump < 0 {
		return Stall{}, fmt.Errorf("%w: negative jump %d", apperr.ErrInvalidSequence, pointer.Jump)
	}
	for i, step := range pointer.Sequence {
		if err := s.documents.Validate(ctx, persistence.DocumentStep, step); err != nil {
			return Stall{}, prefixFields(err, fmt.Sprintf("sequence[%d]", i))
		}
	}
	return s.repo.UpdateWorkerPointer(ctx, id, workerID, pointer, audit.ActorName(), s.clock.Stamp())
}

// RemoveWorker pulls a worker's assignment. Its shifts are not touched.
func (s *Service) RemoveWorker(ctx context.Context, id uuid.UUID, workerID string) (Stall, error) {
	return s.repo.RemoveWorker(ctx, id, workerID)
}

// ListByCustomerAndPeriod lists a customer's stalls for the period.
func (s *Service) ListByCustomerAndPeriod(ctx context.Context, customer string, period Period) ([]Stall, error) {
	return s.repo.ListByCustomerAndPeriod(ctx, customer, period)
}

// ListByPeriod lists every stall of the company for the period.
func (s *Service) ListByPeriod(ctx context.Context, period Period) ([]Stall, error) {
	return s.repo.ListByPeriod(ctx, period)
}

func (s *Service) checkWorker(ctx context.Context, w StallWorker) error {
	if len(w.Sequence) > 0 && w.Index >= len(w.Sequence) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", apperr.ErrInvalidSequence, w.Index, len(w.Sequence))
	}
	if err := s.documents.Validate(ctx, persistence.DocumentStallWorker, w); err != nil {
		return prefixFields(err, "worker")
	}
	return nil
}

func stampWorker(w StallWorker, actor, stamp string) StallWorker {
	if w.Sequence == nil {
		w.Sequence = []engine.Step{}
	}
	w.CreatedBy, w.UpdatedBy = actor, actor
	w.CreatedAt, w.UpdatedAt = stamp, stamp
	return w
}

func prefixFields(err error, prefix string) error {
	var validationErr *apperr.ValidationError
	if !errors.As(err, &validationErr) {
		return err
	}
	fields := apperr.FieldErrors{}
	for field, messages := range validationErr.Fields {
		for _, msg := range messages {
			fields.Add(prefix+strings.ReplaceAll(field, "/", "."), msg)
		}
	}
	return &apperr.ValidationError{Fields: fields}
}

func requireCompanySpace(ctx context.Context) (tenant.Space, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return tenant.Space{}, ErrCompanyMissing
	}
	return space, nil
}
