package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/domains/scheduling/be/service"
	"github.com/harmony-hq/harmony/domains/sequences/be/engine"
	shiftsvc "github.com/harmony-hq/harmony/domains/shifts/be/service"
	stallsvc "github.com/harmony-hq/harmony/domains/stalls/be/service"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

// Coordinator is the scheduling surface served over HTTP.
type Coordinator interface {
	CreateStall(ctx context.Context, audit requesttrace.AuditInfo, input stallsvc.CreateInput) (stallsvc.Stall, error)
	GetStall(ctx context.Context, id uuid.UUID) (stallsvc.Stall, error)
	UpdateStall(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID, input stallsvc.UpdateInput) (stallsvc.Stall, error)
	DeleteStall(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (service.DeleteStallResult, error)
	AssignWorker(ctx context.Context, audit requesttrace.AuditInfo, stallID uuid.UUID, worker stallsvc.StallWorker) (stallsvc.Stall, error)
	RemoveWorker(ctx context.Context, audit requesttrace.AuditInfo, input service.RemoveWorkerInput) (service.RemoveWorkerResult, error)
	ApplySequence(ctx context.Context, audit requesttrace.AuditInfo, input service.ApplySequenceInput) (service.ApplySequenceResult, error)
	CreateShifts(ctx context.Context, audit requesttrace.AuditInfo, shifts []shiftsvc.Shift) ([]shiftsvc.Shift, error)
	UpdateShifts(ctx context.Context, audit requesttrace.AuditInfo, updates []shiftsvc.Update) ([]shiftsvc.Shift, error)
	DeleteShifts(ctx context.Context, audit requesttrace.AuditInfo, stall string, ids []uuid.UUID) ([]shiftsvc.Shift, error)
	ListByCustomerAndPeriod(ctx context.Context, customer string, q service.PeriodQuery) (service.StallsAndShifts, error)
	ListByPeriod(ctx context.Context, q service.PeriodQuery) (service.StallsAndShifts, error)
}

// Handler serves /stalls and /shifts.
type Handler struct {
	svc      Coordinator
	validate *validation.Validator
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(svc Coordinator, validate *validation.Validator, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("scheduling service is required")
	}
	if validate == nil {
		panic("validator is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, validate: validate, logger: logger}
}

// Routes mounts the stall and shift endpoints with their role gates.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/stalls", func(r chi.Router) {
		r.With(platformauth.RequireRole(platformauth.StallReaders...)).Get("/", h.ListStalls)
		r.With(platformauth.RequireRole(platformauth.StallWriters...)).Post("/", h.CreateStall)

		r.Route("/{stallId}", func(r chi.Router) {
			r.With(platformauth.RequireRole(platformauth.StallReaders...)).Get("/", h.GetStall)

			r.Group(func(r chi.Router) {
				r.Use(platformauth.RequireRole(platformauth.StallWriters...))
				r.Put("/", h.UpdateStall)
				r.Delete("/", h.DeleteStall)
				r.Post("/workers", h.AssignWorker)
				r.Delete("/workers/{workerId}", h.RemoveWorker)
			})

			r.Group(func(r chi.Router) {
				r.Use(platformauth.RequireRole(platformauth.ShiftWriters...))
				r.Put("/workers/{workerId}/sequence", h.ApplySequence)
				r.Delete("/shifts", h.DeleteShifts)
			})
		})
	})

	r.Route("/shifts", func(r chi.Router) {
		r.With(platformauth.RequireRole(platformauth.ShiftReaders...)).Get("/", h.ListShifts)
		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.ShiftWriters...))
			r.Post("/", h.CreateShifts)
			r.Put("/", h.UpdateShifts)
		})
	})
}

type updateStallRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Ays         *string `json:"ays"`
	Branch      *string `json:"branch"`
	Stage       *int    `json:"stage" validate:"omitempty,min=0"`
	Tag         *string `json:"tag"`
}

type applySequenceRequest struct {
	SequenceID string        `json:"sequenceId"`
	Sequence   []engine.Step `json:"sequence"`
	Index      int           `json:"index"`
	Jump       int           `json:"jump"`
	From       string        `json:"from" validate:"required"`
	To         string        `json:"to" validate:"required"`
}

type shiftIDsRequest struct {
	Shifts []uuid.UUID `json:"shifts"`
}

type createShiftsRequest struct {
	Shifts []shiftsvc.Shift `json:"shifts" validate:"required,min=1"`
}

type shiftUpdate struct {
	ID           uuid.UUID `json:"id" validate:"required"`
	StartTime    string    `json:"startTime" validate:"clock"`
	EndTime      string    `json:"endTime" validate:"clock"`
	Color        string    `json:"color"`
	Abbreviation string    `json:"abbreviation"`
	Description  string    `json:"description"`
	Type         string    `json:"type" validate:"omitempty,oneof=shift rest event"`
	Active       bool      `json:"active"`
	Keep         bool      `json:"keep"`
}

type updateShiftsRequest struct {
	Shifts []shiftUpdate `json:"shifts" validate:"required,min=1,dive"`
}

type shiftsResponse struct {
	Shifts []shiftsvc.Shift `json:"shifts"`
}

type applySequenceResponse struct {
	Stall     stallsvc.Stall   `json:"stall"`
	Removed   []shiftsvc.Shift `json:"removed"`
	Inserted  []shiftsvc.Shift `json:"inserted"`
	Kept      []shiftsvc.Shift `json:"kept"`
	NextIndex int              `json:"nextIndex"`
}

type stallWithShiftsResponse struct {
	Stall  stallsvc.Stall   `json:"stall"`
	Shifts []shiftsvc.Shift `json:"shifts"`
}

// ListStalls implements GET /stalls?customerId=&months=&years=&types=
func (h *Handler) ListStalls(w http.ResponseWriter, r *http.Request) {
	q, err := periodQuery(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	var result service.StallsAndShifts
	if customer := r.URL.Query().Get("customerId"); customer != "" {
		result, err = h.svc.ListByCustomerAndPeriod(r.Context(), customer, q)
	} else {
		result, err = h.svc.ListByPeriod(r.Context(), q)
	}
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// CreateStall implements POST /stalls
func (h *Handler) CreateStall(w http.ResponseWriter, r *http.Request) {
	var input stallsvc.CreateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	stall, err := h.svc.CreateStall(r.Context(), audit(r), input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/stalls/%s", stall.ID))
	httpx.WriteJSON(w, http.StatusCreated, stall)
}

// GetStall implements GET /stalls/{stallId}
func (h *Handler) GetStall(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "stallId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	stall, err := h.svc.GetStall(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stall)
}

// UpdateStall implements PUT /stalls/{stallId}
func (h *Handler) UpdateStall(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "stallId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var body updateStallRequest
	if err := h.decode(w, r, &body); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	stall, err := h.svc.UpdateStall(r.Context(), audit(r), id, stallsvc.UpdateInput{
		Name:        body.Name,
		Description: body.Description,
		Ays:         body.Ays,
		Branch:      body.Branch,
		Stage:       body.Stage,
		Tag:         body.Tag,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stall)
}

// DeleteStall implements DELETE /stalls/{stallId}
func (h *Handler) DeleteStall(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "stallId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	result, err := h.svc.DeleteStall(r.Context(), audit(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stallWithShiftsResponse{Stall: result.Stall, Shifts: nonNil(result.Shifts)})
}

// AssignWorker implements POST /stalls/{stallId}/workers
func (h *Handler) AssignWorker(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "stallId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var worker stallsvc.StallWorker
	if err := httpx.DecodeJSON(w, r, &worker); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	stall, err := h.svc.AssignWorker(r.Context(), audit(r), id, worker)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stall)
}

// RemoveWorker implements DELETE /stalls/{stallId}/workers/{workerId}.
// An optional body {shifts: [ids]} limits which of the worker's shifts are deleted.
func (h *Handler) RemoveWorker(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "stallId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	workerID, err := httpx.PathString(r, "workerId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var body shiftIDsRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(w, r, &body); err != nil {
			httpx.WriteError(w, r, h.logger, err)
			return
		}
	}

	result, err := h.svc.RemoveWorker(r.Context(), audit(r), service.RemoveWorkerInput{StallID: id, WorkerID: workerID, ShiftIDs: body.Shifts})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stallWithShiftsResponse{Stall: result.Stall, Shifts: nonNil(result.Shifts)})
}

// ApplySequence implements PUT /stalls/{stallId}/workers/{workerId}/sequence
func (h *Handler) ApplySequence(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "stallId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	workerID, err := httpx.PathString(r, "workerId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var body applySequenceRequest
	if err := h.decode(w, r, &body); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.svc.ApplySequence(r.Context(), audit(r), service.ApplySequenceInput{
		StallID:    id,
		WorkerID:   workerID,
		SequenceID: body.SequenceID,
		Sequence:   body.Sequence,
		Index:      body.Index,
		Jump:       body.Jump,
		From:       body.From,
		To:         body.To,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, applySequenceResponse{
		Stall:     result.Stall,
		Removed:   nonNil(result.Removed),
		Inserted:  nonNil(result.Inserted),
		Kept:      nonNil(result.Kept),
		NextIndex: result.NextIndex,
	})
}

// DeleteShifts implements DELETE /stalls/{stallId}/shifts
func (h *Handler) DeleteShifts(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "stallId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	var body shiftIDsRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	deleted, err := h.svc.DeleteShifts(r.Context(), audit(r), id.String(), body.Shifts)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, shiftsResponse{Shifts: nonNil(deleted)})
}

// ListShifts implements GET /shifts?months=&years=&types=
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q, err := periodQuery(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	result, err := h.svc.ListByPeriod(r.Context(), q)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, shiftsResponse{Shifts: nonNil(result.Shifts)})
}

// CreateShifts implements POST /shifts
func (h *Handler) CreateShifts(w http.ResponseWriter, r *http.Request) {
	var body createShiftsRequest
	if err := h.decode(w, r, &body); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	created, err := h.svc.CreateShifts(r.Context(), audit(r), body.Shifts)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, shiftsResponse{Shifts: nonNil(created)})
}

// UpdateShifts implements PUT /shifts
func (h *Handler) UpdateShifts(w http.ResponseWriter, r *http.Request) {
	var body updateShiftsRequest
	if err := h.decode(w, r, &body); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	updates := make([]shiftsvc.Update, 0, len(body.Shifts))
	for _, u := range body.Shifts {
		updates = append(updates, shiftsvc.Update{
			ID:           u.ID,
			StartTime:    u.StartTime,
			EndTime:      u.EndTime,
			Color:        u.Color,
			Abbreviation: u.Abbreviation,
			Description:  u.Description,
			Type:         u.Type,
			Active:       u.Active,
			Keep:         u.Keep,
		})
	}
	updated, err := h.svc.UpdateShifts(r.Context(), audit(r), updates)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, shiftsResponse{Shifts: nonNil(updated)})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func periodQuery(r *http.Request) (service.PeriodQuery, error) {
	months, err := httpx.QueryList(r, "months")
	if err != nil {
		return service.PeriodQuery{}, err
	}
	years, err := httpx.QueryList(r, "years")
	if err != nil {
		return service.PeriodQuery{}, err
	}
	types, err := httpx.QueryList(r, "types")
	if err != nil {
		return service.PeriodQuery{}, err
	}
	return service.PeriodQuery{Months: months, Years: years, Types: types}, nil
}

func audit(r *http.Request) requesttrace.AuditInfo {
	return requesttrace.FromContextOrAnonymous(r.Context())
}

func nonNil(shifts []shiftsvc.Shift) []shiftsvc.Shift {
	if shifts == nil {
		return []shiftsvc.Shift{}
	}
	return shifts
}
