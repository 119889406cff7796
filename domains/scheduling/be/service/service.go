// Package service coordinates multi-step scheduling operations that span the stall
// assignment store and the shift ledger.
//
// Shift data is the source of truth. Apply-sequence replaces a worker's shifts in a single
// transaction first and persists the rotation pointer afterwards; a pointer write that still
// fails after retries leaves correct shifts behind and is reported as apperr.ErrInconsistent.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/domains/sequences/be/engine"
	shiftsvc "github.com/harmony-hq/harmony/domains/shifts/be/service"
	stallsvc "github.com/harmony-hq/harmony/domains/stalls/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	platformlogging "github.com/harmony-hq/harmony/platform/go/logging"
	"github.com/harmony-hq/harmony/platform/go/metrics"
	"github.com/harmony-hq/harmony/platform/go/notify"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// Operation names used for metrics, logs and InconsistentError.Operation.
const (
	OpApplySequence = "apply_sequence"
	OpDeleteStall   = "delete_stall"
	OpRemoveWorker  = "remove_worker"
)

// Log entry types recorded by the coordinator.
const (
	logTypeStall = "stall"
	logTypeShift = "shift"
)

// ErrCompanyMissing is returned when the context carries no resolved company space.
var ErrCompanyMissing = fmt.Errorf("company space missing from context: %w", apperr.ErrTenantNotFound)

// StallStore is the subset of the assignment store the coordinator drives.
type StallStore interface {
	Create(ctx context.Context, audit requesttrace.AuditInfo, input stallsvc.CreateInput) (stallsvc.Stall, error)
	Get(ctx context.Context, id uuid.UUID) (stallsvc.Stall, error)
	Update(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input stallsvc.UpdateInput) (stallsvc.Stall, error)
	Delete(ctx context.Context, id uuid.UUID) (stallsvc.Stall, error)
	AssignWorker(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, worker stallsvc.StallWorker) (stallsvc.Stall, error)
	UpdateWorkerPointer(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, workerID string, pointer stallsvc.Pointer) (stallsvc.Stall, error)
	RemoveWorker(ctx context.Context, id uuid.UUID, workerID string) (stallsvc.Stall, error)
	ListByCustomerAndPeriod(ctx context.Context, customer string, period stallsvc.Period) ([]stallsvc.Stall, error)
	ListByPeriod(ctx context.Context, period stallsvc.Period) ([]stallsvc.Stall, error)
}

// ShiftLedger is the subset of the shift ledger the coordinator drives.
type ShiftLedger interface {
	CreateMany(ctx context.Context, audit requesttrace.AuditInfo, shifts []shiftsvc.Shift) ([]shiftsvc.Shift, error)
	UpdateMany(ctx context.Context, audit requesttrace.AuditInfo, updates []shiftsvc.Update) ([]shiftsvc.Shift, error)
	DeleteMany(ctx context.Context, stall string, ids []uuid.UUID) ([]shiftsvc.Shift, error)
	FindByMonthAndYear(ctx context.Context, filter shiftsvc.Filter) ([]shiftsvc.Shift, error)
	FindByCustomerAndPeriod(ctx context.Context, customer string, filter shiftsvc.Filter) ([]shiftsvc.Shift, error)
	ReplaceForWorker(ctx context.Context, audit requesttrace.AuditInfo, replacement shiftsvc.Replacement) (shiftsvc.ReplaceResult, error)
	DeleteByStall(ctx context.Context, stall string) ([]shiftsvc.Shift, error)
	DeleteByStallWorker(ctx context.Context, stall, worker string) ([]shiftsvc.Shift, error)
}

// AuditLog is the write-only audit sink.
type AuditLog interface {
	RecordFor(ctx context.Context, audit requesttrace.AuditInfo, entryType, message string) error
}

// RetryPolicy bounds the exponential backoff applied to storage failures of a protocol step.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultRetryPolicy is used when Config.Retry is zero.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
	MaxRetries:      3,
}

// Config wires the coordinator's collaborators. Log, Notifier and Metrics are optional.
type Config struct {
	Stalls   StallStore
	Shifts   ShiftLedger
	Log      AuditLog
	Notifier notify.Publisher
	Metrics  *metrics.Metrics
	Clock    *auditstamp.Clock
	Logger   *zap.Logger
	Retry    RetryPolicy
}

// Service is the cross-collection consistency coordinator.
type Service struct {
	stalls   StallStore
	shifts   ShiftLedger
	log      AuditLog
	notifier notify.Publisher
	metrics  *metrics.Metrics
	clock    *auditstamp.Clock
	logger   *zap.Logger
	retry    RetryPolicy

	locks   *stallLocks
	effects sync.WaitGroup
}

// New constructs a Service.
func New(cfg Config) *Service {
	if cfg.Stalls == nil {
		panic("stall store is required")
	}
	if cfg.Shifts == nil {
		panic("shift ledger is required")
	}
	if cfg.Clock == nil {
		panic("clock is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy
	}
	return &Service{
		stalls:   cfg.Stalls,
		shifts:   cfg.Shifts,
		log:      cfg.Log,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		logger:   cfg.Logger.Named("scheduling"),
		retry:    cfg.Retry,
		locks:    newStallLocks(),
	}
}

// MaxApplyDays bounds the inclusive range one ApplySequence call may materialize.
const MaxApplyDays = 366

// ApplySequenceInput selects the worker, the rotation and the calendar range to materialize.
// From and To are inclusive YYYY-MM-DD days. The range spans at most MaxApplyDays days.
type ApplySequenceInput struct {
	StallID    uuid.UUID
	WorkerID   string
	SequenceID string
	Sequence   []engine.Step
	Index      int
	Jump       int
	From       string
	To         string
}

// ApplySequenceResult reports the regenerated shifts and the persisted stall.
type ApplySequenceResult struct {
	Stall stallsvc.Stall
	shiftsvc.ReplaceResult
	// NextIndex is the rotation position that follows the last materialized day.
	NextIndex int
}

// ApplySequence expands the rotation over [From, To], replaces the worker's non-kept shifts in
// that range and persists the pointer. Concurrent calls on the same stall are serialized.
func (s *Service) ApplySequence(ctx context.Context, audit requesttrace.AuditInfo, input ApplySequenceInput) (ApplySequenceResult, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return ApplySequenceResult{}, err
	}
	from, to, err := s.parseRange(input.From, input.To)
	if err != nil {
		return ApplySequenceResult{}, err
	}
	assignments, err := engine.Expand(input.Sequence, input.Index, input.Jump, from, to)
	if err != nil {
		return ApplySequenceResult{}, err
	}
	next, err := engine.NextIndex(len(input.Sequence), input.Index, input.Jump, len(assignments))
	if err != nil {
		return ApplySequenceResult{}, err
	}

	unlock := s.locks.lock(lockKey(space, input.StallID.String()))
	defer unlock()

	stall, err := s.stalls.Get(ctx, input.StallID)
	if err != nil {
		s.metrics.ObserveScheduling(OpApplySequence, metrics.OutcomeError)
		return ApplySequenceResult{}, err
	}
	worker, ok := stall.Worker(input.WorkerID)
	if !ok {
		s.metrics.ObserveScheduling(OpApplySequence, metrics.OutcomeError)
		return ApplySequenceResult{}, stallsvc.ErrWorkerNotFound
	}

	replacement := shiftsvc.Replacement{
		Stall:  stall.ID.String(),
		Worker: worker.ID,
		From:   input.From,
		To:     input.To,
		Shifts: materialize(stall, worker, input.SequenceID, assignments),
	}

	var replaced shiftsvc.ReplaceResult
	err = s.withRetry(ctx, OpApplySequence, "replace_shifts", func(ctx context.Context) error {
		var err error
		replaced, err = s.shifts.ReplaceForWorker(ctx, audit, replacement)
		return err
	})
	if err != nil {
		s.metrics.ObserveScheduling(OpApplySequence, metrics.OutcomeError)
		return ApplySequenceResult{}, err
	}

	// The replacement is committed; the pointer write must not be abandoned with the request.
	detached := context.WithoutCancel(ctx)
	pointer := stallsvc.Pointer{Sequence: input.Sequence, Index: input.Index, Jump: input.Jump}
	err = s.withRetry(detached, OpApplySequence, "update_pointer", func(ctx context.Context) error {
		var err error
		stall, err = s.stalls.UpdateWorkerPointer(ctx, audit, input.StallID, input.WorkerID, pointer)
		return err
	})
	if err != nil {
		return ApplySequenceResult{}, s.inconsistent(ctx, &apperr.InconsistentError{
			Operation: OpApplySequence,
			StallID:   input.StallID.String(),
			WorkerID:  input.WorkerID,
			Period:    input.From + ".." + input.To,
			Completed: []string{"expand", "replace_shifts"},
			Err:       err,
		}, "update_pointer", zap.String("range_start", input.From), zap.String("range_end", input.To))
	}

	s.metrics.ObserveScheduling(OpApplySequence, metrics.OutcomeSuccess)
	s.sideEffects(ctx, audit, logTypeShift,
		fmt.Sprintf("applied sequence to worker %s on stall %s from %s to %s (%d shifts)",
			worker.Name, stall.Name, input.From, input.To, len(replaced.Inserted)),
		notify.StallUpdated, stall)

	return ApplySequenceResult{Stall: stall, ReplaceResult: replaced, NextIndex: next}, nil
}

// DeleteStallResult is the last state of a deleted stall and the shifts removed with it.
type DeleteStallResult struct {
	Stall  stallsvc.Stall
	Shifts []shiftsvc.Shift
}

// DeleteStall removes every shift of the stall and then the stall itself.
func (s *Service) DeleteStall(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (DeleteStallResult, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return DeleteStallResult{}, err
	}

	unlock := s.locks.lock(lockKey(space, id.String()))
	defer unlock()

	if _, err := s.stalls.Get(ctx, id); err != nil {
		s.metrics.ObserveScheduling(OpDeleteStall, metrics.OutcomeError)
		return DeleteStallResult{}, err
	}

	var removed []shiftsvc.Shift
	err = s.withRetry(ctx, OpDeleteStall, "delete_shifts", func(ctx context.Context) error {
		var err error
		removed, err = s.shifts.DeleteByStall(ctx, id.String())
		return err
	})
	if err != nil {
		s.metrics.ObserveScheduling(OpDeleteStall, metrics.OutcomeError)
		return DeleteStallResult{}, err
	}

	var stall stallsvc.Stall
	err = s.withRetry(context.WithoutCancel(ctx), OpDeleteStall, "delete_stall", func(ctx context.Context) error {
		var err error
		stall, err = s.stalls.Delete(ctx, id)
		return err
	})
	if err != nil {
		return DeleteStallResult{}, s.inconsistent(ctx, &apperr.InconsistentError{
			Operation: OpDeleteStall,
			StallID:   id.String(),
			Completed: []string{"delete_shifts"},
			Err:       err,
		}, "delete_stall")
	}

	s.metrics.ObserveScheduling(OpDeleteStall, metrics.OutcomeSuccess)
	s.sideEffects(ctx, audit, logTypeStall,
		fmt.Sprintf("deleted stall %s with %d shifts", stall.Name, len(removed)),
		notify.StallDeleted, stall)

	return DeleteStallResult{Stall: stall, Shifts: removed}, nil
}

// RemoveWorkerInput identifies the assignment to pull. When ShiftIDs is empty every shift of
// the worker on the stall is deleted; otherwise only the listed ones.
type RemoveWorkerInput struct {
	StallID  uuid.UUID
	WorkerID string
	ShiftIDs []uuid.UUID
}

// RemoveWorkerResult is the stall after removal and the shifts deleted with the assignment.
type RemoveWorkerResult struct {
	Stall  stallsvc.Stall
	Shifts []shiftsvc.Shift
}

// RemoveWorker pulls the assignment and then deletes the worker's shifts on the stall.
func (s *Service) RemoveWorker(ctx context.Context, audit requesttrace.AuditInfo, input RemoveWorkerInput) (RemoveWorkerResult, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return RemoveWorkerResult{}, err
	}
	if strings.TrimSpace(input.WorkerID) == "" {
		return RemoveWorkerResult{}, apperr.NewValidationError(map[string]string{"workerId": "is required"})
	}

	unlock := s.locks.lock(lockKey(space, input.StallID.String()))
	defer unlock()

	var stall stallsvc.Stall
	err = s.withRetry(ctx, OpRemoveWorker, "remove_worker", func(ctx context.Context) error {
		var err error
		stall, err = s.stalls.RemoveWorker(ctx, input.StallID, input.WorkerID)
		return err
	})
	if err != nil {
		s.metrics.ObserveScheduling(OpRemoveWorker, metrics.OutcomeError)
		return RemoveWorkerResult{}, err
	}

	stallKey := input.StallID.String()
	var removed []shiftsvc.Shift
	err = s.withRetry(context.WithoutCancel(ctx), OpRemoveWorker, "delete_shifts", func(ctx context.Context) error {
		var err error
		if len(input.ShiftIDs) > 0 {
			removed, err = s.shifts.DeleteMany(ctx, stallKey, input.ShiftIDs)
		} else {
			removed, err = s.shifts.DeleteByStallWorker(ctx, stallKey, input.WorkerID)
		}
		return err
	})
	if err != nil {
		return RemoveWorkerResult{}, s.inconsistent(ctx, &apperr.InconsistentError{
			Operation: OpRemoveWorker,
			StallID:   stallKey,
			WorkerID:  input.WorkerID,
			Completed: []string{"remove_worker"},
			Err:       err,
		}, "delete_shifts")
	}

	s.metrics.ObserveScheduling(OpRemoveWorker, metrics.OutcomeSuccess)
	s.sideEffects(ctx, audit, logTypeStall,
		fmt.Sprintf("removed worker %s from stall %s (%d shifts deleted)", input.WorkerID, stall.Name, len(removed)),
		notify.StallUpdated, stall)

	return RemoveWorkerResult{Stall: stall, Shifts: removed}, nil
}

// AssignWorker appends an assignment to the stall. Shifts are materialized by ApplySequence.
func (s *Service) AssignWorker(ctx context.Context, audit requesttrace.AuditInfo, stallID uuid.UUID, worker stallsvc.StallWorker) (stallsvc.Stall, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return stallsvc.Stall{}, err
	}
	unlock := s.locks.lock(lockKey(space, stallID.String()))
	defer unlock()

	stall, err := s.stalls.AssignWorker(ctx, audit, stallID, worker)
	if err != nil {
		return stallsvc.Stall{}, err
	}
	s.sideEffects(ctx, audit, logTypeStall,
		fmt.Sprintf("assigned worker %s to stall %s", worker.Name, stall.Name),
		notify.StallUpdated, stall)
	return stall, nil
}

// CreateStall stores a new stall.
func (s *Service) CreateStall(ctx context.Context, audit requesttrace.AuditInfo, input stallsvc.CreateInput) (stallsvc.Stall, error) {
	stall, err := s.stalls.Create(ctx, audit, input)
	if err != nil {
		return stallsvc.Stall{}, err
	}
	s.sideEffects(ctx, audit, logTypeStall, fmt.Sprintf("created stall %s", stall.Name), notify.StallCreated, stall)
	return stall, nil
}

// GetStall returns a stall by id.
func (s *Service) GetStall(ctx context.Context, id uuid.UUID) (stallsvc.Stall, error) {
	return s.stalls.Get(ctx, id)
}

// UpdateStall changes a stall's descriptive fields.
func (s *Service) UpdateStall(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input stallsvc.UpdateInput) (stallsvc.Stall, error) {
	stall, err := s.stalls.Update(ctx, audit, id, input)
	if err != nil {
		return stallsvc.Stall{}, err
	}
	s.sideEffects(ctx, audit, logTypeStall, fmt.Sprintf("updated stall %s", stall.Name), notify.StallUpdated, stall)
	return stall, nil
}

// CreateShifts inserts shifts as one batch.
func (s *Service) CreateShifts(ctx context.Context, audit requesttrace.AuditInfo, shifts []shiftsvc.Shift) ([]shiftsvc.Shift, error) {
	created, err := s.shifts.CreateMany(ctx, audit, shifts)
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		s.sideEffects(ctx, audit, logTypeShift, fmt.Sprintf("created %d shifts", len(created)), notify.ShiftsChanged, created)
	}
	return created, nil
}

// UpdateShifts applies updates as one batch.
func (s *Service) UpdateShifts(ctx context.Context, audit requesttrace.AuditInfo, updates []shiftsvc.Update) ([]shiftsvc.Shift, error) {
	updated, err := s.shifts.UpdateMany(ctx, audit, updates)
	if err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		s.sideEffects(ctx, audit, logTypeShift, fmt.Sprintf("updated %d shifts", len(updated)), notify.ShiftsChanged, updated)
	}
	return updated, nil
}

// DeleteShifts deletes shifts of one stall by id and returns the deleted rows.
func (s *Service) DeleteShifts(ctx context.Context, audit requesttrace.AuditInfo, stall string, ids []uuid.UUID) ([]shiftsvc.Shift, error) {
	space, err := requireCompanySpace(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(lockKey(space, stall))
	defer unlock()

	deleted, err := s.shifts.DeleteMany(ctx, stall, ids)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		s.sideEffects(ctx, audit, logTypeShift, fmt.Sprintf("deleted %d shifts from stall %s", len(deleted), stall), notify.ShiftsChanged, deleted)
	}
	return deleted, nil
}

// PeriodQuery selects stalls and shifts by period. Types filters shifts only.
type PeriodQuery struct {
	Months []string
	Years  []string
	Types  []string
}

// StallsAndShifts is the combined read model served to the calendar views.
type StallsAndShifts struct {
	Stalls []stallsvc.Stall `json:"stalls"`
	Shifts []shiftsvc.Shift `json:"shifts"`
}

// ListByCustomerAndPeriod returns a customer's stalls and shifts for the period.
func (s *Service) ListByCustomerAndPeriod(ctx context.Context, customer string, q PeriodQuery) (StallsAndShifts, error) {
	stalls, err := s.stalls.ListByCustomerAndPeriod(ctx, customer, stallsvc.Period{Months: q.Months, Years: q.Years})
	if err != nil {
		return StallsAndShifts{}, err
	}
	shifts, err := s.shifts.FindByCustomerAndPeriod(ctx, customer, shiftsvc.Filter{Months: q.Months, Years: q.Years, Types: q.Types})
	if err != nil {
		return StallsAndShifts{}, err
	}
	return StallsAndShifts{Stalls: stalls, Shifts: shifts}, nil
}

// ListByPeriod returns every stall and shift of the company for the period.
func (s *Service) ListByPeriod(ctx context.Context, q PeriodQuery) (StallsAndShifts, error) {
	stalls, err := s.stalls.ListByPeriod(ctx, stallsvc.Period{Months: q.Months, Years: q.Years})
	if err != nil {
		return StallsAndShifts{}, err
	}
	shifts, err := s.shifts.FindByMonthAndYear(ctx, shiftsvc.Filter{Months: q.Months, Years: q.Years, Types: q.Types})
	if err != nil {
		return StallsAndShifts{}, err
	}
	return StallsAndShifts{Stalls: stalls, Shifts: shifts}, nil
}

// Close waits for pending audit and notification side effects.
func (s *Service) Close() {
	s.effects.Wait()
}

func (s *Service) parseRange(from, to string) (time.Time, time.Time, error) {
	fields := map[string]string{}
	start, err := auditstamp.ParseDay(from, s.clock.Location())
	if err != nil {
		fields["from"] = "must be YYYY-MM-DD"
	}
	end, err := auditstamp.ParseDay(to, s.clock.Location())
	if err != nil {
		fields["to"] = "must be YYYY-MM-DD"
	}
	if len(fields) == 0 && end.After(start.AddDate(0, 0, MaxApplyDays-1)) {
		fields["to"] = fmt.Sprintf("must be within %d days of from", MaxApplyDays)
	}
	if len(fields) > 0 {
		return time.Time{}, time.Time{}, apperr.NewValidationError(fields)
	}
	return start, end, nil
}

// withRetry retries fn while it fails with a storage error. Any other failure is final.
func (s *Service) withRetry(ctx context.Context, operation, step string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval
	if s.retry.MaxInterval > 0 {
		b.MaxInterval = s.retry.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			s.metrics.ObserveRetry(operation, step)
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperr.ErrStorage) {
			return backoff.Permanent(err)
		}
		platformlogging.FromContextOr(ctx, s.logger).Warn("scheduling step failed",
			zap.String("operation", operation),
			zap.String("step", step),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, s.retry.MaxRetries), ctx))
}

func (s *Service) inconsistent(ctx context.Context, ie *apperr.InconsistentError, step string, fields ...zap.Field) error {
	s.metrics.ObserveScheduling(ie.Operation, metrics.OutcomeInconsistent)
	fields = append(fields,
		zap.String("operation", ie.Operation),
		zap.String("stall_id", ie.StallID),
		zap.String("worker_id", ie.WorkerID),
		zap.String("step", step),
		zap.Strings("completed", ie.Completed),
		zap.Error(ie.Err),
	)
	platformlogging.FromContextOr(ctx, s.logger).Error("scheduling left inconsistent state", fields...)
	return ie
}

// sideEffects records the audit entry and publishes the event without blocking the caller.
// Failures are logged and never reach the caller.
func (s *Service) sideEffects(ctx context.Context, audit requesttrace.AuditInfo, logType, message, event string, data any) {
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

func materialize(stall stallsvc.Stall, worker stallsvc.StallWorker, sequenceID string, assignments []engine.Assignment) []shiftsvc.Shift {
	out := make([]shiftsvc.Shift, 0, len(assignments))
	for _, a := range assignments {
		month, year := auditstamp.MonthYear(a.Day)
		out = append(out, shiftsvc.Shift{
			Day:          auditstamp.Day(a.Day),
			StartTime:    a.Step.StartTime,
			EndTime:      a.Step.EndTime,
			Color:        a.Step.Color,
			Abbreviation: a.Step.Abbreviation,
			Description:  a.Step.Description,
			Sequence:     sequenceID,
			Position:     worker.Position,
			Type:         a.Step.Type(),
			Active:       true,
			Worker:       worker.ID,
			WorkerName:   worker.Name,
			Stall:        stall.ID.String(),
			StallName:    stall.Name,
			Customer:     stall.Customer,
			CustomerName: stall.CustomerName,
			Month:        month,
			Year:         year,
		})
	}
	return out
}

func requireCompanySpace(ctx context.Context) (tenant.Space, error) {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return tenant.Space{}, ErrCompanyMissing
	}
	return space, nil
}

func lockKey(space tenant.Space, stall string) string {
	return space.SchemaName + "/" + stall
}
