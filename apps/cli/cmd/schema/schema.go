package schemacmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	sqlassets "github.com/harmony-hq/harmony/database"
)

// Command groups schema helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Schema utilities (print the embedded DDL)",
	}

	cmd.AddCommand(printCommand())
	return cmd
}

func printCommand() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the DDL applied to the root schema or to each company schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printDDL(cmd.OutOrStdout(), scope)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "company", "platform | company")
	return cmd
}

func printDDL(w io.Writer, scope string) error {
	var statements []string
	switch scope {
	case "platform":
		statements = sqlassets.PlatformDDL()
	case "company":
		statements = sqlassets.CompanySpaceDDL()
	default:
		return fmt.Errorf("unknown scope %q (use platform or company)", scope)
	}
	for _, stmt := range statements {
		if _, err := fmt.Fprintln(w, strings.TrimSpace(stmt)); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
