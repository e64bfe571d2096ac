package cli

import (
	"attendly/internal/server"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the session sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, flush, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer flush()

			app, err := server.New(cfg, clock.New(), log)
			if err != nil {
				return err
			}
			defer app.Close() //nolint:errcheck

			return app.Run(cmd.Context())
		},
	}
}
