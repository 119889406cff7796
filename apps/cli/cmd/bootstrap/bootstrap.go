package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harmony-hq/harmony/domains/companies/be/provisioning"
	companiesrepo "github.com/harmony-hq/harmony/domains/companies/be/repo"
	companiesservice "github.com/harmony-hq/harmony/domains/companies/be/service"
	platformlogging "github.com/harmony-hq/harmony/platform/go/logging"
	"github.com/harmony-hq/harmony/platform/go/persistence"
)

// Notes/constraints:
// - The root DDL runs first; company schemas are listed from the directory it creates.
// - Every step is idempotent, so re-running bootstrap after an upgrade adds missing tables and indexes.

// Command applies the root schema DDL and re-applies the company DDL to every listed company.
func Command() *cobra.Command {
	var (
		databaseURL   string
		rootSchema    string
		skipCompanies bool
	)

	c := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the root schema and bring every company schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}
			ctx := cmd.Context()
			logger := platformlogging.FromContextOr(ctx, nil)

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL, ApplicationName: "harmony-cli"})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapRootSchema(ctx, pool, rootSchema); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "root schema %q ready\n", rootSchema)

			if skipCompanies {
				return nil
			}

			repo := companiesrepo.NewPostgresRepository(persistence.NewCompanyDB(persistence.CompanyDBConfig{
				Pool:       pool,
				RootSchema: rootSchema,
			}))
			prov := provisioning.NewDBProvisioner(pool)

			count, err := eachCompany(ctx, repo, func(company companiesservice.Company) error {
				schema := company.Space().SchemaName
				if err := prov.EnsureCompanySchema(ctx, schema); err != nil {
					logger.Error("apply company schema", zap.Stringer("company_id", company.ID),
						zap.String("schema", schema), zap.Error(err))
					return fmt.Errorf("company %s: %w", company.ID, err)
				}
				logger.Debug("company schema applied", zap.Stringer("company_id", company.ID), zap.String("schema", schema))
				fmt.Fprintf(cmd.OutOrStdout(), "company %q schema %q ready\n", company.Name, schema)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d company schema(s) checked\n", count)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&rootSchema, "root-schema", envOr("ROOT_SCHEMA", "harmony"), "schema holding the company directory and users")
	c.Flags().BoolVar(&skipCompanies, "skip-companies", false, "only apply the root schema DDL")

	return c
}

type companyLister interface {
	List(ctx context.Context, opts companiesservice.ListOptions) (companiesservice.ListResult, error)
}

// eachCompany pages through the directory and calls fn for every company.
func eachCompany(ctx context.Context, repo companyLister, fn func(companiesservice.Company) error) (int, error) {
	const pageSize = 100
	count := 0
	for page := 1; ; page++ {
		result, err := repo.List(ctx, companiesservice.ListOptions{Page: page, PageSize: pageSize})
		if err != nil {
			return count, fmt.Errorf("list companies: %w", err)
		}
		for _, company := range result.Companies {
			if err := fn(company); err != nil {
				return count, err
			}
			count++
		}
		if page >= result.TotalPages || len(result.Companies) == 0 {
			return count, nil
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
