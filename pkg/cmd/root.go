package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	flagVerbose           bool
	flagQuiet             bool
	flagForce             bool
	flagIgnoreRegulations bool

	// Logger is configured from the global flags before any subcommand runs.
	Logger *log.Logger
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "finn",
		Short: "Fin package manager",
		Long:  "finn installs Fin packages and their dependencies into a project environment and records them in finn.lock.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			Logger = newLogger(cmd)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "show debug output")
	flags.BoolVarP(&flagQuiet, "quiet", "q", false, "only show errors")
	flags.BoolVarP(&flagForce, "force", "f", false, "reinstall packages that are already installed")
	flags.BoolVar(&flagIgnoreRegulations, "ignore-regulations", false, "install packages that do not look like Fin packages")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newRemoveCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newHealthcheckCmd())

	return root
}

func newLogger(cmd *cobra.Command) *log.Logger {
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "finn"})
	switch {
	case flagVerbose:
		logger.SetLevel(log.DebugLevel)
	case flagQuiet:
		logger.SetLevel(log.ErrorLevel)
	}
	return logger
}

func logger() *log.Logger {
	if Logger == nil {
		return log.Default()
	}
	return Logger
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logger().Error(err)
		os.Exit(1)
	}
}
