package root

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	platformlogging "github.com/harmony-hq/harmony/platform/go/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "harmony",
	Short:         "Harmony admin CLI",
	Long:          "Administrative utilities for Harmony: schema bootstrap, company onboarding, DDL and dev tokens.",
	SilenceErrors: true,
	SilenceUsage:  true,
	// Subcommands read the console logger through platformlogging.FromContextOr(cmd.Context(), nil).
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := platformlogging.NewLogger(platformlogging.Config{
			Component: "harmony-cli",
			Level:     logLevel,
			Encoding:  "console",
			Output:    cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		cmd.SetContext(platformlogging.WithLogger(cmd.Context(), logger))
		return nil
	},
}

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", level, "debug, info, warn or error")
}

// Execute runs the CLI; SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// Root returns the root command so subpackages can attach to it.
func Root() *cobra.Command {
	return rootCmd
}
