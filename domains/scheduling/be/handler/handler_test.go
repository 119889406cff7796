package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harmony-hq/harmony/domains/scheduling/be/service"
	shiftsvc "github.com/harmony-hq/harmony/domains/shifts/be/service"
	stallsvc "github.com/harmony-hq/harmony/domains/stalls/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/httpx"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

type mockCoordinator struct {
	createStallFn   func(ctx context.Context, audit requesttrace.AuditInfo, input stallsvc.CreateInput) (stallsvc.Stall, error)
	getStallFn      func(ctx context.Context, id uuid.UUID) (stallsvc.Stall, error)
	deleteStallFn   func(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (service.DeleteStallResult, error)
	removeWorkerFn  func(ctx context.Context, audit requesttrace.AuditInfo, input service.RemoveWorkerInput) (service.RemoveWorkerResult, error)
	applySequenceFn func(ctx context.Context, audit requesttrace.AuditInfo, input service.ApplySequenceInput) (service.ApplySequenceResult, error)
	updateShiftsFn  func(ctx context.Context, audit requesttrace.AuditInfo, updates []shiftsvc.Update) ([]shiftsvc.Shift, error)
	deleteShiftsFn  func(ctx context.Context, audit requesttrace.AuditInfo, stall string, ids []uuid.UUID) ([]shiftsvc.Shift, error)
	listByCustomer  func(ctx context.Context, customer string, q service.PeriodQuery) (service.StallsAndShifts, error)
	listByPeriodFn  func(ctx context.Context, q service.PeriodQuery) (service.StallsAndShifts, error)
}

func (m *mockCoordinator) CreateStall(ctx context.Context, audit requesttrace.AuditInfo, input stallsvc.CreateInput) (stallsvc.Stall, error) {
	if m.createStallFn == nil {
		panic("createStallFn not configured")
	}
	return m.createStallFn(ctx, audit, input)
}

func (m *mockCoordinator) GetStall(ctx context.Context, id uuid.UUID) (stallsvc.Stall, error) {
	if m.getStallFn == nil {
		panic("getStallFn not configured")
	}
	return m.getStallFn(ctx, id)
}

func (m *mockCoordinator) UpdateStall(context.Context, requesttrace.AuditInfo, uuid.UUID, stallsvc.UpdateInput) (stallsvc.Stall, error) {
	panic("UpdateStall not configured")
}

func (m *mockCoordinator) DeleteStall(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (service.DeleteStallResult, error) {
	if m.deleteStallFn == nil {
		panic("deleteStallFn not configured")
	}
	return m.deleteStallFn(ctx, audit, id)
}

func (m *mockCoordinator) AssignWorker(context.Context, requesttrace.AuditInfo, uuid.UUID, stallsvc.StallWorker) (stallsvc.Stall, error) {
	panic("AssignWorker not configured")
}

func (m *mockCoordinator) RemoveWorker(ctx context.Context, audit requesttrace.AuditInfo, input service.RemoveWorkerInput) (service.RemoveWorkerResult, error) {
	if m.removeWorkerFn == nil {
		panic("removeWorkerFn not configured")
	}
	return m.removeWorkerFn(ctx, audit, input)
}

func (m *mockCoordinator) ApplySequence(ctx context.Context, audit requesttrace.AuditInfo, input service.ApplySequenceInput) (service.ApplySequenceResult, error) {
	if m.applySequenceFn == nil {
		panic("applySequenceFn not configured")
	}
	return m.applySequenceFn(ctx, audit, input)
}

func (m *mockCoordinator) CreateShifts(context.Context, requesttrace.AuditInfo, []shiftsvc.Shift) ([]shiftsvc.Shift, error) {
	panic("CreateShifts not configured")
}

func (m *mockCoordinator) UpdateShifts(ctx context.Context, audit requesttrace.AuditInfo, updates []shiftsvc.Update) ([]shiftsvc.Shift, error) {
	if m.updateShiftsFn == nil {
		panic("updateShiftsFn not configured")
	}
	return m.updateShiftsFn(ctx, audit, updates)
}

func (m *mockCoordinator) DeleteShifts(ctx context.Context, audit requesttrace.AuditInfo, stall string, ids []uuid.UUID) ([]shiftsvc.Shift, error) {
	if m.deleteShiftsFn == nil {
		panic("deleteShiftsFn not configured")
	}
	return m.deleteShiftsFn(ctx, audit, stall, ids)
}

func (m *mockCoordinator) ListByCustomerAndPeriod(ctx context.Context, customer string, q service.PeriodQuery) (service.StallsAndShifts, error) {
	if m.listByCustomer == nil {
		panic("listByCustomer not configured")
	}
	return m.listByCustomer(ctx, customer, q)
}

func (m *mockCoordinator) ListByPeriod(ctx context.Context, q service.PeriodQuery) (service.StallsAndShifts, error) {
	if m.listByPeriodFn == nil {
		panic("listByPeriodFn not configured")
	}
	return m.listByPeriodFn(ctx, q)
}

func newRouter(t *testing.T, svc Coordinator, roles ...string) http.Handler {
	t.Helper()
	h := New(svc, validation.New(), zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			creds := &platformauth.UserCredentials{ID: "u1", UserName: "ana", CompanyID: "c1", Roles: roles}
			ctx := platformauth.WithUser(req.Context(), creds)
			audit, _ := requesttrace.FromCredentials(creds, "req-1")
			next.ServeHTTP(w, req.WithContext(requesttrace.IntoContext(ctx, audit)))
		})
	})
	h.Routes(r)
	return r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) httpx.Problem {
	t.Helper()
	var p httpx.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestApplySequenceBindsPathAndBody(t *testing.T) {
	t.Parallel()

	stallID := uuid.New()
	svc := &mockCoordinator{}
	svc.applySequenceFn = func(ctx context.Context, audit requesttrace.AuditInfo, input service.ApplySequenceInput) (service.ApplySequenceResult, error) {
		require.Equal(t, stallID, input.StallID)
		require.Equal(t, "w-7", input.WorkerID)
		require.Len(t, input.Sequence, 2)
		require.Equal(t, 1, input.Jump)
		require.Equal(t, "ana", audit.ActorName())
		return service.ApplySequenceResult{NextIndex: 1}, nil
	}

	rec := do(newRouter(t, svc, platformauth.RoleManager), http.MethodPut, "/stalls/"+stallID.String()+"/workers/w-7/sequence",
		`{"sequence":[{"startTime":"06:00","endTime":"18:00","color":"#fff"},{"startTime":"","endTime":"","color":"#000"}],"index":0,"jump":1,"from":"2024-03-01","to":"2024-03-31"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp applySequenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.NextIndex)
	require.NotNil(t, resp.Inserted)
}

func TestApplySequenceMapsErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"invalid sequence", apperr.ErrInvalidSequence, http.StatusUnprocessableEntity, httpx.ProblemTypeSequence},
		{"worker missing", stallsvc.ErrWorkerNotFound, http.StatusNotFound, httpx.ProblemTypeNotFound},
		{"inconsistent", &apperr.InconsistentError{Operation: service.OpApplySequence, StallID: "s"}, http.StatusInternalServerError, httpx.ProblemTypeInconsistent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockCoordinator{}
			svc.applySequenceFn = func(context.Context, requesttrace.AuditInfo, service.ApplySequenceInput) (service.ApplySequenceResult, error) {
				return service.ApplySequenceResult{}, tc.err
			}
			rec := do(newRouter(t, svc, platformauth.RoleAdmin), http.MethodPut, "/stalls/"+uuid.NewString()+"/workers/w/sequence",
				`{"sequence":[],"from":"2024-03-01","to":"2024-03-02"}`)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.typ, decodeProblem(t, rec).Type)
		})
	}
}

func TestApplySequenceRequiresRange(t *testing.T) {
	t.Parallel()

	rec := do(newRouter(t, &mockCoordinator{}, platformauth.RoleAdmin), http.MethodPut, "/stalls/"+uuid.NewString()+"/workers/w/sequence", `{"sequence":[]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodeProblem(t, rec)
	require.Contains(t, p.Errors, "from")
	require.Contains(t, p.Errors, "to")
}

func TestRoleGates(t *testing.T) {
	t.Parallel()

	svc := &mockCoordinator{}
	svc.listByPeriodFn = func(context.Context, service.PeriodQuery) (service.StallsAndShifts, error) {
		return service.StallsAndShifts{}, nil
	}

	worker := newRouter(t, svc, platformauth.RoleWorker)
	require.Equal(t, http.StatusOK, do(worker, http.MethodGet, "/shifts", "").Code)
	require.Equal(t, http.StatusForbidden, do(worker, http.MethodGet, "/stalls", "").Code)
	require.Equal(t, http.StatusForbidden, do(worker, http.MethodPut, "/shifts", `{"shifts":[]}`).Code)

	superAdmin := newRouter(t, svc, platformauth.RoleSuperAdmin)
	require.Equal(t, http.StatusOK, do(superAdmin, http.MethodGet, "/stalls", "").Code)
}

func TestListStallsByCustomer(t *testing.T) {
	t.Parallel()

	svc := &mockCoordinator{}
	svc.listByCustomer = func(ctx context.Context, customer string, q service.PeriodQuery) (service.StallsAndShifts, error) {
		require.Equal(t, "cust-1", customer)
		require.Equal(t, []string{"02", "03"}, q.Months)
		require.Equal(t, []string{"2024"}, q.Years)
		require.Equal(t, []string{"shift"}, q.Types)
		return service.StallsAndShifts{Stalls: []stallsvc.Stall{{Name: "North gate"}}, Shifts: []shiftsvc.Shift{}}, nil
	}

	rec := do(newRouter(t, svc, platformauth.RoleReadStalls), http.MethodGet, "/stalls?customerId=cust-1&months=02,03&years=2024&types=shift", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body service.StallsAndShifts
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Stalls, 1)
}

func TestCreateStallSetsLocation(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockCoordinator{}
	svc.createStallFn = func(ctx context.Context, audit requesttrace.AuditInfo, input stallsvc.CreateInput) (stallsvc.Stall, error) {
		require.Equal(t, "North gate", input.Name)
		return stallsvc.Stall{ID: id, Name: input.Name}, nil
	}

	rec := do(newRouter(t, svc, platformauth.RoleHandleStalls), http.MethodPost, "/stalls", `{"name":"North gate","month":"03","year":"2024","customer":"c"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/api/v1/stalls/"+id.String(), rec.Header().Get("Location"))
}

func TestGetStallRejectsMalformedID(t *testing.T) {
	t.Parallel()

	rec := do(newRouter(t, &mockCoordinator{}, platformauth.RoleAdmin), http.MethodGet, "/stalls/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeProblem(t, rec).Errors, "stallId")
}

func TestDeleteShiftsPassesStallScope(t *testing.T) {
	t.Parallel()

	stallID := uuid.New()
	shiftID := uuid.New()
	svc := &mockCoordinator{}
	svc.deleteShiftsFn = func(ctx context.Context, audit requesttrace.AuditInfo, stall string, ids []uuid.UUID) ([]shiftsvc.Shift, error) {
		require.Equal(t, stallID.String(), stall)
		require.Equal(t, []uuid.UUID{shiftID}, ids)
		return nil, nil
	}

	rec := do(newRouter(t, svc, platformauth.RoleManager), http.MethodDelete, "/stalls/"+stallID.String()+"/shifts", `{"shifts":["`+shiftID.String()+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"shifts":[]}`, rec.Body.String())
}

func TestRemoveWorkerWithoutBody(t *testing.T) {
	t.Parallel()

	stallID := uuid.New()
	svc := &mockCoordinator{}
	svc.removeWorkerFn = func(ctx context.Context, audit requesttrace.AuditInfo, input service.RemoveWorkerInput) (service.RemoveWorkerResult, error) {
		require.Equal(t, "w-1", input.WorkerID)
		require.Empty(t, input.ShiftIDs)
		return service.RemoveWorkerResult{Stall: stallsvc.Stall{ID: stallID}}, nil
	}

	rec := do(newRouter(t, svc, platformauth.RoleAdmin), http.MethodDelete, "/stalls/"+stallID.String()+"/workers/w-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateShiftsValidatesBody(t *testing.T) {
	t.Parallel()

	svc := &mockCoordinator{}
	router := newRouter(t, svc, platformauth.RoleAdmin)

	rec := do(router, http.MethodPut, "/shifts", `{"shifts":[{"id":"`+uuid.NewString()+`","startTime":"25:00"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeProblem(t, rec).Errors, "shifts[0].startTime")

	svc.updateShiftsFn = func(ctx context.Context, audit requesttrace.AuditInfo, updates []shiftsvc.Update) ([]shiftsvc.Shift, error) {
		require.True(t, updates[0].Keep)
		return nil, shiftsvc.ErrNotFound
	}
	rec = do(router, http.MethodPut, "/shifts", `{"shifts":[{"id":"`+uuid.NewString()+`","startTime":"08:00","keep":true}]}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteStallReturnsSnapshot(t *testing.T) {
	t.Parallel()

	stallID := uuid.New()
	svc := &mockCoordinator{}
	svc.deleteStallFn = func(ctx context.Context, audit requesttrace.AuditInfo, id uuid.UUID) (service.DeleteStallResult, error) {
		return service.DeleteStallResult{Stall: stallsvc.Stall{ID: id, Name: "North gate"}, Shifts: []shiftsvc.Shift{{Day: "2024-03-01"}}}, nil
	}

	rec := do(newRouter(t, svc, platformauth.RoleAdmin), http.MethodDelete, "/stalls/"+stallID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body stallWithShiftsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, stallID, body.Stall.ID)
	require.Len(t, body.Shifts, 1)
}
