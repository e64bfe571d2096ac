// Package cli holds the attendly command tree.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"attendly/internal/config"
	"attendly/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Command returns the root command.
func Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "attendly",
		Short:         "Rotating-QR attendance server and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "path to the configuration file")

	root.AddCommand(
		serveCommand(),
		hostCommand(),
		suggestCommand(),
		tokenCommand(),
	)
	return root
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Command().ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return log, func() { _ = log.Sync() }, nil
}
