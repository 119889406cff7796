package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/tenant"
)

// Log entry types, one per audited resource.
const (
	TypeStall    = "stall"
	TypeShift    = "shift"
	TypeWorker   = "worker"
	TypeCustomer = "customer"
	TypeUser     = "user"
	TypeCompany  = "company"
)

// Errors returned by the audit log.
var (
	ErrNotFound       = fmt.Errorf("log entry %w", apperr.ErrNotFound)
	ErrCompanyMissing = fmt.Errorf("company space missing from context: %w", apperr.ErrTenantNotFound)
)

// Entry is an append-only audit record.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Company   uuid.UUID `json:"company"`
	User      string    `json:"user"`
	UserName  string    `json:"userName"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Month     string    `json:"month"`
	Year      string    `json:"year"`
	CreatedAt string    `json:"createdAt"`
}

// Repository abstracts persistence. Implementations scope every call to the company space on ctx.
type Repository interface {
	Insert(ctx context.Context, entry Entry) (Entry, error)
	ListByPeriod(ctx context.Context, month, year string) ([]Entry, error)
	Delete(ctx context.Context, id uuid.UUID) (Entry, error)
}

// Service records and lists audit entries.
type Service struct {
	repo  Repository
	clock *auditstamp.Clock
}

func New(repo Repository, clock *auditstamp.Clock) *Service {
	if repo == nil {
		panic("logs repository is required")
	}
	if clock == nil {
		panic("clock is required")
	}
	return &Service{repo: repo, clock: clock}
}

// Record appends entry, filling id, company, period and timestamp.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	space, ok := tenant.FromContext(ctx)
	if !ok || space.SchemaName == "" {
		return ErrCompanyMissing
	}
	if strings.TrimSpace(entry.Type) == "" || strings.TrimSpace(entry.Message) == "" {
		return apperr.NewValidationError(map[string]string{"entry": "type and message are required"})
	}

	now := s.clock.Now()
	entry.ID = uuid.New()
	entry.Company = space.CompanyID
	entry.Month, entry.Year = auditstamp.MonthYear(now)
	entry.CreatedAt = s.clock.Format(now)

	_, err := s.repo.Insert(ctx, entry)
	return err
}

// RecordFor builds an entry for the acting user and records it.
func (s *Service) RecordFor(ctx context.Context, audit requesttrace.AuditInfo, entryType, message string) error {
	return s.Record(ctx, Entry{
		User:     audit.Email,
		UserName: audit.ActorName(),
		Type:     entryType,
		Message:  message,
	})
}

// ListByPeriod returns the entries logged in month/year, newest first.
func (s *Service) ListByPeriod(ctx context.Context, month, year string) ([]Entry, error) {
	if month == "" || year == "" {
		now := s.clock.Now()
		defMonth, defYear := auditstamp.MonthYear(now)
		if month == "" {
			month = defMonth
		}
		if year == "" {
			year = defYear
		}
	}
	return s.repo.ListByPeriod(ctx, month, year)
}

// Delete removes one entry.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (Entry, error) {
	return s.repo.Delete(ctx, id)
}
