package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harmony-hq/harmony/platform/go/auth/devtoken"
)

func devTokenCommand() *cobra.Command {
	var (
		params    devtoken.Params
		unsigned  bool
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Mint a Harmony access token for dev/local use",
		Long: "Mint a Harmony access token. The token is signed with --secret (or JWT_SECRET); " +
			"--unsigned produces an alg=none token accepted only by an api running with AUTH_PROVIDER=dev.",
		RunE: func(cmd *cobra.Command, args []string) error {
			params.ExpiresIn = expiresIn
			if params.Secret == "" {
				params.Secret = os.Getenv("JWT_SECRET")
			}
			if unsigned {
				params.Secret = ""
			} else if params.Secret == "" {
				return fmt.Errorf("a signing secret is required (use --secret, JWT_SECRET or --unsigned)")
			}

			token, err := devtoken.Build(params, time.Now().UTC())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	// Required claims
	cmd.Flags().StringVar(&params.UserID, "user-id", "", "sub claim")
	cmd.Flags().StringVar(&params.CompanyID, "company-id", "", "company claim (UUID)")

	// Optional claims
	cmd.Flags().StringVar(&params.UserName, "user-name", "", "userName claim, used as audit actor")
	cmd.Flags().StringVar(&params.Email, "email", "", "email claim")
	cmd.Flags().StringSliceVar(&params.Roles, "roles", nil, "roles (comma-separated), e.g. admin,manager")
	cmd.Flags().StringSliceVar(&params.Customers, "customers", []string{"all"}, "customer tag scope (comma-separated)")
	cmd.Flags().StringSliceVar(&params.Workers, "workers", []string{"all"}, "worker tag scope (comma-separated)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")
	cmd.Flags().StringVar(&params.Secret, "secret", "", "HS256 signing secret; defaults to JWT_SECRET")
	cmd.Flags().BoolVar(&unsigned, "unsigned", false, "emit an unsigned token for AUTH_PROVIDER=dev")

	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("company-id")

	return cmd
}
