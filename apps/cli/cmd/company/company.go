package companycmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/harmony-hq/harmony/domains/companies/be/provisioning"
	companiesrepo "github.com/harmony-hq/harmony/domains/companies/be/repo"
	companiesservice "github.com/harmony-hq/harmony/domains/companies/be/service"
	"github.com/harmony-hq/harmony/domains/sequences/be/engine"
	usersrepo "github.com/harmony-hq/harmony/domains/users/be/repo"
	usersservice "github.com/harmony-hq/harmony/domains/users/be/service"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	platformlogging "github.com/harmony-hq/harmony/platform/go/logging"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

// Command groups company onboarding helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Company utilities (create from a definition file)",
	}

	cmd.AddCommand(createCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL string
		rootSchema  string
		timezone    string
		file        string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a company, its schema, its definitions and its first admin from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open company file: %w", err)
			}
			defer f.Close()

			def, err := loadCompanyFile(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL, ApplicationName: "harmony-cli"})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			clock, err := auditstamp.New(timezone)
			if err != nil {
				return fmt.Errorf("load timezone: %w", err)
			}
			validate := validation.New()

			companyDB := persistence.NewCompanyDB(persistence.CompanyDBConfig{Pool: pool, RootSchema: rootSchema})
			companies := companiesservice.New(
				companiesrepo.NewPostgresRepository(companyDB),
				provisioning.NewDBProvisioner(pool),
				clock,
				validate,
				persistence.MustNewDocumentValidator(),
				rootSchema,
			)

			userStore, err := persistence.NewUserStore(companyDB)
			if err != nil {
				return fmt.Errorf("init user store: %w", err)
			}
			users := usersservice.New(usersservice.Config{
				Repo:      usersrepo.NewPostgresRepository(userStore),
				Tokens:    noTokens{},
				Clock:     clock,
				Validator: validate,
			})

			logger := platformlogging.FromContextOr(ctx, nil)
			company, err := onboard(ctx, companies, users, def, cmd.OutOrStdout())
			if err != nil {
				logger.Error("onboard company", zap.String("file", file), zap.Error(err))
				return err
			}
			logger.Info("company onboarded", zap.Stringer("company_id", company.ID),
				zap.String("schema", company.Space().SchemaName))
			fmt.Fprintf(cmd.OutOrStdout(), "company %q created with id %s\n", company.Name, company.ID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&rootSchema, "root-schema", envOr("ROOT_SCHEMA", "harmony"), "schema holding the company directory and users")
	c.Flags().StringVar(&timezone, "timezone", envOr("TIMEZONE", "America/Bogota"), "zone of audit timestamps")
	c.Flags().StringVarP(&file, "file", "f", "", "company definition (YAML)")
	_ = c.MarkFlagRequired("file")

	return c
}

// companyFile is the YAML onboarding document.
type companyFile struct {
	companiesservice.CreateInput `yaml:",inline"`

	WorkerFields   []fieldFile      `yaml:"workerFields"`
	CustomerFields []fieldFile      `yaml:"customerFields"`
	Positions      []positionFile   `yaml:"positions"`
	Conventions    []conventionFile `yaml:"conventions"`
	Sequences      []sequenceFile   `yaml:"sequences"`
	Tags           []tagFile        `yaml:"tags"`
	Admin          *adminFile       `yaml:"admin"`
}

type fieldFile struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Options  []string `yaml:"options"`
	Size     int      `yaml:"size"`
	Required bool     `yaml:"required"`
}

type positionFile struct {
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value"`
	Year  string  `yaml:"year"`
}

type conventionFile struct {
	Name         string `yaml:"name"`
	Color        string `yaml:"color"`
	Abbreviation string `yaml:"abbreviation"`
	Keep         bool   `yaml:"keep"`
}

type stepFile struct {
	StartTime    string `yaml:"startTime"`
	EndTime      string `yaml:"endTime"`
	Color        string `yaml:"color"`
	Abbreviation string `yaml:"abbreviation"`
	Description  string `yaml:"description"`
}

type sequenceFile struct {
	Name  string     `yaml:"name"`
	Steps []stepFile `yaml:"steps"`
}

type tagFile struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
	Scope string `yaml:"scope"`
}

type adminFile struct {
	UserName string `yaml:"userName"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

func loadCompanyFile(r io.Reader) (companyFile, error) {
	var def companyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return companyFile{}, errors.New("company file is empty")
		}
		return companyFile{}, fmt.Errorf("decode company file: %w", err)
	}
	return def, nil
}

// Onboarding dependencies, satisfied by the companies and users services.
type (
	directory interface {
		Create(ctx context.Context, audit requesttrace.AuditInfo, input companiesservice.CreateInput) (companiesservice.Company, error)
		AddField(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, scope companiesservice.FieldScope, f companiesservice.Field) (companiesservice.Field, error)
		AddPosition(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, p companiesservice.Position) (companiesservice.Position, error)
		AddConvention(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, c companiesservice.Convention) (companiesservice.Convention, error)
		AddSequence(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, seq companiesservice.Sequence) (companiesservice.Sequence, error)
		AddTag(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, t companiesservice.Tag) (companiesservice.Tag, error)
	}
	userDirectory interface {
		Create(ctx context.Context, caller *platformauth.UserCredentials, audit requesttrace.AuditInfo, input usersservice.CreateInput) (usersservice.User, error)
	}
)

// onboard creates the company and then each definition. Definitions already added stay
// in place when a later one fails; the error names the failing entry.
func onboard(ctx context.Context, companies directory, users userDirectory, def companyFile, out io.Writer) (companiesservice.Company, error) {
	audit := requesttrace.System("cli-company-create")
	ctx = requesttrace.IntoContext(ctx, audit)

	company, err := companies.Create(ctx, audit, def.CreateInput)
	if err != nil {
		return companiesservice.Company{}, fmt.Errorf("create company: %w", err)
	}

	for _, f := range def.WorkerFields {
		if _, err := companies.AddField(ctx, audit, company.ID, companiesservice.ScopeWorker, f.toField()); err != nil {
			return company, fmt.Errorf("add worker field %q: %w", f.Name, err)
		}
	}
	for _, f := range def.CustomerFields {
		if _, err := companies.AddField(ctx, audit, company.ID, companiesservice.ScopeCustomer, f.toField()); err != nil {
			return company, fmt.Errorf("add customer field %q: %w", f.Name, err)
		}
	}
	for _, p := range def.Positions {
		if _, err := companies.AddPosition(ctx, audit, company.ID, companiesservice.Position{Name: p.Name, Value: p.Value, Year: p.Year}); err != nil {
			return company, fmt.Errorf("add position %q: %w", p.Name, err)
		}
	}
	for _, c := range def.Conventions {
		conv := companiesservice.Convention{Name: c.Name, Color: c.Color, Abbreviation: c.Abbreviation, Keep: c.Keep}
		if _, err := companies.AddConvention(ctx, audit, company.ID, conv); err != nil {
			return company, fmt.Errorf("add convention %q: %w", c.Name, err)
		}
	}
	for _, s := range def.Sequences {
		if _, err := companies.AddSequence(ctx, audit, company.ID, s.toSequence()); err != nil {
			return company, fmt.Errorf("add sequence %q: %w", s.Name, err)
		}
	}
	for _, t := range def.Tags {
		if _, err := companies.AddTag(ctx, audit, company.ID, companiesservice.Tag{Name: t.Name, Color: t.Color, Scope: t.Scope}); err != nil {
			return company, fmt.Errorf("add tag %q: %w", t.Name, err)
		}
	}

	if def.Admin != nil {
		caller := &platformauth.UserCredentials{ID: "harmony-cli", UserName: "harmony-cli", Roles: []string{platformauth.RoleSuperAdmin}}
		companyID := company.ID
		admin, err := users.Create(ctx, caller, audit, usersservice.CreateInput{
			UserName:  def.Admin.UserName,
			Email:     def.Admin.Email,
			Password:  def.Admin.Password,
			CompanyID: &companyID,
			Roles:     []string{platformauth.RoleAdmin},
			Customers: []string{platformauth.ScopeAllSentinel},
			Workers:   []string{platformauth.ScopeAllSentinel},
		})
		if err != nil {
			return company, fmt.Errorf("create admin user: %w", err)
		}
		fmt.Fprintf(out, "admin %s created\n", admin.Email)
	}
	return company, nil
}

func (f fieldFile) toField() companiesservice.Field {
	return companiesservice.Field{Name: f.Name, Type: f.Type, Options: f.Options, Size: f.Size, Required: f.Required, Active: true}
}

func (s sequenceFile) toSequence() companiesservice.Sequence {
	steps := make([]engine.Step, 0, len(s.Steps))
	for _, st := range s.Steps {
		steps = append(steps, engine.Step{
			StartTime:    st.StartTime,
			EndTime:      st.EndTime,
			Color:        st.Color,
			Abbreviation: st.Abbreviation,
			Description:  st.Description,
		})
	}
	return companiesservice.Sequence{Name: s.Name, Steps: steps}
}

// noTokens satisfies the users service; the CLI never logs anyone in.
type noTokens struct{}

func (noTokens) Issue(platformauth.UserCredentials) (string, time.Time, error) {
	return "", time.Time{}, errors.New("token issuing is not available from the CLI")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
