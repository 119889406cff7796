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
)

// Errors returned by the shift ledger.
var (
	ErrNotFound       = fmt.Errorf("shift %w", apperr.ErrNotFound)
	ErrCompanyMissing = fmt.Errorf("company space missing from context: %w", apperr.ErrTenantNotFound)
)

// Shift is a single calendar-day assignment of a worker to a stall.
type Shift struct {
	ID           uuid.UUID `json:"id"`
	Day          string    `json:"day"`
	StartTime    string    `json:"startTime"`
	EndTime      string    `json:"endTime"`
	Color        string    `json:"color"`
	Abbreviation string    `json:"abbreviation"`
	Description  string    `json:"description"`
	Sequence     string    `json:"sequence"`
	Position     string    `json:"position"`
	Type         string    `json:"type"`
	Active       bool      `json:"active"`
	Keep         bool      `json:"keep"`
	Worker       string    `json:"worker"`
	WorkerName   string    `json:"workerName"`
	Stall        string    `json:"stall"`
	StallName    string    `json:"stallName"`
	Customer     string    `json:"customer"`
	CustomerName string    `json:"customerName"`
	Company      uuid.UUID `json:"company"`
	Month        string    `json:"month"`
	Year         string    `json:"year"`
	CreatedBy    string    `json:"createdBy"`
	UpdatedBy    string    `json:"updatedBy"`
	CreatedAt    string    `json:"createdAt"`
	UpdatedAt    string    `json:"updatedAt"`
}

// Update carries the mutable fields of an existing shift.
type Update struct {
	ID           uuid.UUID
	StartTime    string
	EndTime      string
	Color        string
	Abbreviation string
	Description  string
	Type         string
	Active       bool
	Keep         bool
	UpdatedBy    string
	UpdatedAt    string
}

// Filter narrows period queries. Empty slices do not filter.
type Filter struct {
	Months []string
	Years  []string
	Types  []string
}

// Replacement describes the regeneration of one worker's shifts on a stall over [From, To].
type Replacement struct {
	Stall  string
	Worker string
	From   string
	To     string
	Shifts []Shift
}

// ReplaceResult reports what a replacement changed.
type ReplaceResult struct {
	Removed  []Shift
	Inserted []Shift
	// Kept lists protected shifts that stayed in place; their days were not regenerated.
	Kept []Shift
}

// Repository abstracts persistence. Implementations scope every call to the
// company space found on ctx.
type Repository interface {
	CreateMany(ctx context.Context, shifts []Shift) ([]Shift, error)
	UpdateMany(ctx context.Context, updates []Update) ([]Shift, error)
	DeleteMany(ctx context.Context, stall string, ids []uuid.UUID) ([]Shift, error)
	FindByMonthAndYear(ctx context.Context, filter Filter) ([]Shift, error)
	FindByCustomerAndPeriod(ctx context.Context, customer string, filter Filter) ([]Shift, error)
	FindByWorkers(ctx context.Context, workers []string, types []string) ([]Shift, error)
	ReplaceForWorker(ctx context.Context, replacement Replacement) (ReplaceResult, error)
	DeleteByStall(ctx context.Context, stall string) ([]Shift, error)
	DeleteByStallWorker(ctx context.Context, stall, worker string) ([]Shift, error)
}

// Service is the shift ledger.
type Service struct {
	repo      Repository
	clock     *auditstamp.Clock
	documents *persistence.DocumentValidator
}

// New constructs a Service.
func New(repo Repository, clock *auditstamp.Clock, documents *persistence.DocumentValidator) *Service {
	if repo == nil {
		panic("shifts repository is required")
	}
	if clock == nil {
		panic("clock is required")
	}
	if documents == nil {
		panic("document validator is required")
	}
	return &Service{repo: repo, clock: clock, documents: documents}
}

// CreateMany stamps and inserts shifts as one batch. Either every shift is stored or none is.
func (s *Service) CreateMany(ctx context.Context, audit requesttrace.AuditInfo, shifts []Shift) ([]Shift, error) {
	if len(shifts) == 0 {
		return []Shift{}, nil
	}
	stamped, err := s.prepare(ctx, audit, shifts)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateMany(ctx, stamped)
}

// UpdateMany applies updates in one batch. Unknown ids fail the whole batch with ErrNotFound.
func (s *Service) UpdateMany(ctx context.Context, audit requesttrace.AuditInfo, updates []Update) ([]Shift, error) {
	if len(updates) == 0 {
		return []Shift{}, nil
	}
	if _, err := requireCompanySpace(ctx); err != nil {
		return nil, err
	}

	fields := apperr.FieldErrors{}
	seen := make(map[uuid.UUID]struct{}, len(updates))
	stamp := s.clock.Stamp()
	out := make([]Update, 0, len(updates))
	for i, u := range updates {
		key := fmt.Sprintf("shifts[%d]", i)
		if u.ID == uuid.Nil {
			fields.Add(key+".id", "is required")
		}
		if _, dup := seen[u.ID]; dup && u.ID != uuid.Nil {
			fields.Add(key+".id", "is duplicated")
		}
		seen[u.ID] = struct{}{}
		if u.Type == "" {
			u.Type = engine.Step{StartTime: u.StartTime, EndTime: u.EndTime}.Type()
		}
		if !validType(u.Type) {
			fields.Add(key+".type", "must be one of shift, rest, event")
		}
		u.UpdatedBy = audit.ActorName()
		u.UpdatedAt = stamp
		out = append(out, u)
	}
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	return s.repo.UpdateMany(ctx, out)
}

// DeleteMany deletes the shifts with ids that belong to stall and returns the deleted rows.
func (s *Service) DeleteMany(ctx context.Context, stall string, ids []uuid.UUID) ([]Shift, error) {
	if strings.TrimSpace(stall) == "" {
		return nil, apperr.NewValidationError(map[string]string{"stall": "is required"})
	}
	if len(ids) == 0 {
		return []Shift{}, nil
	}
	return s.repo.DeleteMany(ctx, stall, ids)
}

// FindByMonthAndYear lists shifts for the company within the period.
func (s *Service) FindByMonthAndYear(ctx context.Context, filter Filter) ([]Shift, error) {
	return s.repo.FindByMonthAndYear(ctx, filter)
}

// FindByCustomerAndPeriod lists a customer's shifts within the period.
func (s *Service) FindByCustomerAndPeriod(ctx context.Context, customer string, filter Filter) ([]Shift, error) {
	return s.repo.FindByCustomerAndPeriod(ctx, customer, filter)
}

// FindByWorkers lists every shift of the given workers.
func (s *Service) FindByWorkers(ctx context.Context, workers []string, types []string) ([]Shift, error) {
	if len(workers) == 0 {
		return []Shift{}, nil
	}
	return s.repo.FindByWorkers(ctx, workers, types)
}

// ReplaceForWorker swaps the non-protected shifts of (stall, worker) in [From, To] for
// the given shifts in one transaction. Days covered by a kept shift are not regenerated.
func (s *Service) ReplaceForWorker(ctx context.Context, audit requesttrace.AuditInfo, replacement Replacement) (ReplaceResult, error) {
	fields := apperr.FieldErrors{}
	if replacement.Stall == "" {
		fields.Add("stall", "is required")
	}
	if replacement.Worker == "" {
		fields.Add("worker", "is required")
	}
	if _, err := auditstamp.ParseDay(replacement.From, nil); err != nil {
		fields.Add("from", "must be YYYY-MM-DD")
	}
	if _, err := auditstamp.ParseDay(replacement.To, nil); err != nil {
		fields.Add("to", "must be YYYY-MM-DD")
	}
	if len(fields) == 0 && replacement.To < replacement.From {
		fields.Add("to", "must not precede from")
	}
	for i, sh := range replacement.Shifts {
		if sh.Stall != replacement.Stall || sh.Worker != replacement.Worker {
			fields.Add(fmt.Sprintf("shifts[%d]", i), "belongs to a different stall or worker")
		}
		if sh.Day < replacement.From || sh.Day > replacement.To {
			fields.Add(fmt.Sprintf("shifts[%d].day", i), "is outside the replacement range")
		}
	}
	if len(fields) > 0 {
		return ReplaceResult{}, &apperr.ValidationError{Fields: fields}
	}

	stamped, err := s.prepare(ctx, audit, replacement.Shifts)
	if err != nil {
		return ReplaceResult{}, err
	}
	replacement.Shifts = stamped
	return s.repo.ReplaceForWorker(ctx, replacement)
}

// DeleteByStall removes every shift of stall.
func (s *Service) DeleteByStall(ctx context.Context, stall string) ([]Shift, error) {
	return s.repo.DeleteByStall(ctx, stall)
}

// DeleteByStallWorker removes every shift of worker on stall.
func (s *Service) DeleteByStallWorker(ctx context.Context, stall, worker string) ([]Shift, error) {
	return s.repo.DeleteByStallWorker(ctx, stall, worker)
}

func (s *Service) prepare(ctx context.Context, audit requesttrace.AuditInfo, shifts []Shift) ([]Shift, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return nil, err
	}

	actor := audit.ActorName()
	stamp := s.clock.Stamp()
	fields := apperr.FieldErrors{}
	out := make([]Shift, 0, len(shifts))
	for i, sh := range shifts {
		if sh.ID == uuid.Nil {
			sh.ID = uuid.New()
		}
		if sh.Type == "" {
			sh.Type = engine.Step{StartTime: sh.StartTime, EndTime: sh.EndTime}.Type()
		}
		if sh.Month == "" || sh.Year == "" {
			if day, err := auditstamp.ParseDay(sh.Day, nil); err == nil {
				sh.Month, sh.Year = auditstamp.MonthYear(day)
			}
		}
		sh.Company = space.CompanyID
		sh.CreatedBy = actor
		sh.UpdatedBy = actor
		sh.CreatedAt = stamp
		sh.UpdatedAt = stamp

		if err := s.documents.Validate(ctx, persistence.DocumentShift, sh); err != nil {
			var validationErr *apperr.ValidationError
			if !errors.As(err, &validationErr) {
				return nil, err
			}
			for field, messages := range validationErr.Fields {
				for _, msg := range messages {
					fields.Add(fmt.Sprintf("shifts[%d]%s", i, strings.ReplaceAll(field, "/", ".")), msg)
				}
			}
			continue
		}
		out = append(out, sh)
	}
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}
	return out, nil
}

func validType(t string) bool {
	switch t {
	case engine.TypeShift, engine.TypeRest, engine.TypeEvent:
		return true
	}
	return false
}

func requireCompanySpace(ctx context.Context) (tenant.Space, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return tenant.Space{}, ErrCompanyMissing
	}
	return space, nil
}
