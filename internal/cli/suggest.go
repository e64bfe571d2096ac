package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"attendly/internal/database"
	"attendly/internal/store"
	"attendly/internal/suggest"

	"github.com/spf13/cobra"
)

func suggestCommand() *cobra.Command {
	var (
		seasonID string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "List probable duplicate attendee identities of a season",
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

			db, err := database.Init(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db) //nolint:errcheck

			if limit <= 0 {
				limit = cfg.Suggest.Limit
			}
			svc := suggest.NewService(store.New(db), cfg.Suggest.BatchSize, limit, log)
			list, err := svc.List(cmd.Context(), seasonID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL A\tEMAIL B\tDISTANCE\tSIGNALS\tRECORDS")
			for _, s := range list {
				signals := make([]string, len(s.Signals))
				for i, sig := range s.Signals {
					signals[i] = string(sig)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n", s.EmailA, s.EmailB, s.Distance, strings.Join(signals, ","), s.RecordCount)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&seasonID, "season", "", "season id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum suggestions (default from config)")
	_ = cmd.MarkFlagRequired("season")
	return cmd
}
