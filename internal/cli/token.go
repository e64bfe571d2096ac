package cli

import (
	"fmt"
	"time"

	"attendly/internal/util"

	"github.com/spf13/cobra"
)

func tokenCommand() *cobra.Command {
	var (
		organizerID string
		ttl         time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an organizer bearer token signed with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tok, err := util.GenerateToken(cfg.JWT.Secret, cfg.JWT.Issuer, organizerID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&organizerID, "organizer", "", "organizer id (token subject)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("organizer")
	return cmd
}
