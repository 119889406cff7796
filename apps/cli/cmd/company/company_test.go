package companycmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	companiesrepo "github.com/harmony-hq/harmony/domains/companies/be/repo"
	companiesservice "github.com/harmony-hq/harmony/domains/companies/be/service"
	usersrepo "github.com/harmony-hq/harmony/domains/users/be/repo"
	usersservice "github.com/harmony-hq/harmony/domains/users/be/service"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

const acmeYAML = `
name: Acme Security
databaseName: acme
website: https://acme.example
workerFields:
  - name: Uniform size
    type: number
    required: true
customerFields:
  - name: Tier
    type: select
    options: [gold, silver]
positions:
  - name: Guard
    value: 1500000
    year: "2025"
conventions:
  - name: Vacation
    color: "#22aa22"
    abbreviation: VAC
    keep: true
sequences:
  - name: Two by two
    steps:
      - {startTime: "06:00", endTime: "18:00", color: "#ff0000"}
      - {startTime: "06:00", endTime: "18:00", color: "#ff0000"}
      - {color: "#cccccc"}
      - {color: "#cccccc"}
tags:
  - name: north
    scope: worker
admin:
  userName: Ana
  email: ana@acme.example
  password: correct-horse
`

type noopProvisioner struct{}

func (noopProvisioner) EnsureCompanySchema(context.Context, string) error { return nil }

func newServices(t *testing.T) (*companiesservice.Service, *usersservice.Service) {
	t.Helper()
	clock := auditstamp.Fixed(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC), time.UTC)
	validate := validation.New()
	companies := companiesservice.New(companiesrepo.NewMemoryStore(), noopProvisioner{}, clock, validate,
		persistence.MustNewDocumentValidator(), "harmony")
	users := usersservice.New(usersservice.Config{
		Repo:      usersrepo.NewMemoryStore(),
		Tokens:    noTokens{},
		Clock:     clock,
		Validator: validate,
		HashCost:  4,
	})
	return companies, users
}

func TestLoadCompanyFile(t *testing.T) {
	def, err := loadCompanyFile(strings.NewReader(acmeYAML))
	require.NoError(t, err)
	require.Equal(t, "Acme Security", def.Name)
	require.Equal(t, "acme", def.DatabaseName)
	require.Len(t, def.WorkerFields, 1)
	require.Equal(t, []string{"gold", "silver"}, def.CustomerFields[0].Options)
	require.Len(t, def.Sequences[0].Steps, 4)
	require.Equal(t, "06:00", def.Sequences[0].Steps[0].StartTime)
	require.NotNil(t, def.Admin)

	_, err = loadCompanyFile(strings.NewReader("name: x\nunknown: 1\n"))
	require.Error(t, err)

	_, err = loadCompanyFile(strings.NewReader(""))
	require.EqualError(t, err, "company file is empty")
}

func TestOnboardCreatesCompanyDefinitionsAndAdmin(t *testing.T) {
	companies, users := newServices(t)
	def, err := loadCompanyFile(strings.NewReader(acmeYAML))
	require.NoError(t, err)

	var out bytes.Buffer
	company, err := onboard(context.Background(), companies, users, def, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "ana@acme.example")

	stored, err := companies.Get(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, stored.WorkerFields, 1)
	require.True(t, stored.WorkerFields[0].Active)
	require.Len(t, stored.CustomerFields, 1)
	require.Len(t, stored.Positions, 1)
	require.Len(t, stored.Conventions, 1)
	require.Len(t, stored.Sequences, 1)
	require.Len(t, stored.Tags, 1)
	require.Equal(t, "system", stored.CreatedBy)
}

func TestOnboardReportsFailingDefinition(t *testing.T) {
	companies, users := newServices(t)
	def, err := loadCompanyFile(strings.NewReader("name: Beta\npositions:\n  - name: Guard\n    value: -1\n"))
	require.NoError(t, err)

	company, err := onboard(context.Background(), companies, users, def, &bytes.Buffer{})
	require.ErrorContains(t, err, `add position "Guard"`)
	require.Equal(t, "Beta", company.Name)
}
