package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harmony-hq/harmony/domains/access/be/tagscope"
	companyrepo "github.com/harmony-hq/harmony/domains/companies/be/repo"
	companysvc "github.com/harmony-hq/harmony/domains/companies/be/service"
	logrepo "github.com/harmony-hq/harmony/domains/logs/be/repo"
	logsvc "github.com/harmony-hq/harmony/domains/logs/be/service"
	"github.com/harmony-hq/harmony/domains/workers/be/repo"
	"github.com/harmony-hq/harmony/domains/workers/be/service"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	"github.com/harmony-hq/harmony/platform/go/notify"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/tenant"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

type noopProvisioner struct{}

func (noopProvisioner) EnsureCompanySchema(context.Context, string) error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

var actor = requesttrace.AuditInfo{ActorKind: "user", UserName: "Ana", Email: "ana@acme.co"}

var all = tagscope.Scope{"all"}

type fixture struct {
	svc       *service.Service
	ctx       context.Context
	sizeID    string
	logs      *logsvc.Service
	published *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := auditstamp.Fixed(time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC), time.UTC)
	companies := companysvc.New(companyrepo.NewMemoryStore(), noopProvisioner{}, clock,
		validation.New(), persistence.MustNewDocumentValidator(), "harmony")

	ctx := context.Background()
	company, err := companies.Create(ctx, actor, companysvc.CreateInput{Name: "Acme"})
	require.NoError(t, err)
	size, err := companies.AddField(ctx, actor, company.ID, companysvc.ScopeWorker, companysvc.Field{
		Name: "Uniform size", Type: companysvc.FieldNumber, Active: true,
	})
	require.NoError(t, err)

	f := &fixture{
		ctx:       tenant.WithSpace(ctx, company.Space()),
		sizeID:    size.ID,
		logs:      logsvc.New(logrepo.NewMemoryStore(), clock),
		published: &recordingPublisher{},
	}
	f.svc = service.New(service.Config{
		Repo:     repo.NewMemoryStore(),
		Fields:   companies,
		Log:      f.logs,
		Notifier: f.published,
		Clock:    clock,
	})
	t.Cleanup(f.svc.Close)
	return f
}

func (f *fixture) events() []string {
	f.svc.Close()
	f.published.mu.Lock()
	defer f.published.mu.Unlock()
	out := make([]string, 0, len(f.published.events))
	for _, e := range f.published.events {
		out = append(out, e.Event)
	}
	return out
}

func worker(name, identification string, tags ...string) service.CreateInput {
	return service.CreateInput{Name: name, Identification: identification, Tags: tags}
}

func TestCreateAndSearch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	luis := worker("Luis Perez", "1010", "north")
	luis.Fields = []companysvc.FieldValue{{ID: f.sizeID, Value: 32}}
	created, err := f.svc.Create(f.ctx, actor, all, luis)
	require.NoError(t, err)
	require.Equal(t, "Ana", created.CreatedBy)
	_, err = f.svc.Create(f.ctx, actor, all, worker("Ana Gomez", "2020", "south"))
	require.NoError(t, err)

	bad := worker("Bea", "3030")
	bad.Fields = []companysvc.FieldValue{{ID: f.sizeID, Value: "large"}}
	_, err = f.svc.Create(f.ctx, actor, all, bad)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Fields, "fields[0].value")

	page, err := f.svc.Search(f.ctx, all, service.SearchOptions{Query: "perez"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, created.ID, page.Workers[0].ID)

	page, err = f.svc.Search(f.ctx, all, service.SearchOptions{Query: "20"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "Ana Gomez", page.Workers[0].Name)

	page, err = f.svc.Search(f.ctx, tagscope.Scope{"south"}, service.SearchOptions{Limit: 1000})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, 50, page.Limit)

	require.Equal(t, []string{notify.WorkerCreated, notify.WorkerCreated}, f.events())
}

func TestGetByIDsFiltersByScope(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	north, err := f.svc.Create(f.ctx, actor, all, worker("Luis", "1010", "north"))
	require.NoError(t, err)
	south, err := f.svc.Create(f.ctx, actor, all, worker("Ana", "2020", "south"))
	require.NoError(t, err)

	got, err := f.svc.GetByIDs(f.ctx, tagscope.Scope{"north"}, []uuid.UUID{north.ID, south.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, north.ID, got[0].ID)

	got, err = f.svc.GetByIDs(f.ctx, all, nil)
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = f.svc.Get(f.ctx, tagscope.Scope{"north"}, south.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	name := "Ana Maria"
	_, err = f.svc.Update(f.ctx, actor, tagscope.Scope{"north"}, south.ID, service.UpdateInput{Name: &name})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Delete(f.ctx, actor, tagscope.Scope{}, north.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestImportUpsertsByIdentification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	existing, err := f.svc.Create(f.ctx, actor, all, worker("Luis", "1010", "north"))
	require.NoError(t, err)
	inactive := false
	_, err = f.svc.Update(f.ctx, actor, all, existing.ID, service.UpdateInput{Active: &inactive})
	require.NoError(t, err)

	result, err := f.svc.Import(f.ctx, actor, tagscope.Scope{"north"}, []service.CreateInput{
		worker("Luis Perez", " 1010 ", "north"),
		worker("Bea", "3030", "north"),
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.Equal(t, "Bea", result.Created[0].Name)
	require.Len(t, result.Updated, 1)
	require.Equal(t, existing.ID, result.Updated[0].ID)
	require.Equal(t, "Luis Perez", result.Updated[0].Name)
	require.False(t, result.Updated[0].Active)

	f.svc.Close()
	entries, err := f.logs.ListByPeriod(f.ctx, "03", "2024")
	require.NoError(t, err)
	messages := make([]string, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, e.Message)
	}
	require.Contains(t, messages, "imported workers (1 created, 1 updated)")
}

func TestImportRejectsBadBatches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Import(f.ctx, actor, all, nil)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Fields, "workers")

	bad := worker("Bea", "3030")
	bad.Fields = []companysvc.FieldValue{{ID: "unknown", Value: 1}}
	_, err = f.svc.Import(f.ctx, actor, all, []service.CreateInput{
		worker("", "1010"),
		worker("Luis", "2020"),
		worker("Luis again", "2020"),
		bad,
	})
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Fields, "workers[0].name")
	require.Contains(t, ve.Fields, "workers[2].identification")
	require.Contains(t, ve.Fields, "workers[3].fields[0].id")

	page, err := f.svc.Search(f.ctx, all, service.SearchOptions{})
	require.NoError(t, err)
	require.Zero(t, page.Total)

	existing, err := f.svc.Create(f.ctx, actor, all, worker("Luis", "1010", "south"))
	require.NoError(t, err)
	_, err = f.svc.Import(f.ctx, actor, tagscope.Scope{"north"}, []service.CreateInput{worker("Luis", "1010", "north")})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	unchanged, err := f.svc.Get(f.ctx, all, existing.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"south"}, unchanged.Tags)
}
