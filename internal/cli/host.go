package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"attendly/internal/config"
	"attendly/internal/host"
	"attendly/internal/lease"
	"attendly/internal/logging"
	"attendly/pkg/client"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const releaseWait = 5 * time.Second

func hostCommand() *cobra.Command {
	var (
		serverURL  string
		token      string
		eventID    string
		heartbeat  time.Duration
		stopOnExit bool
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Claim the host lease of an event and rotate its tokens",
		Long: `Runs the host side of the lease protocol against a server. While this process holds
the lease it rotates tokens at the event's interval; otherwise it watches as a viewer and
takes over once the current holder's lease lapses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				token = os.Getenv("ATTENDLY_TOKEN")
			}
			if token == "" {
				return errors.New("an organizer token is required (--token or ATTENDLY_TOKEN)")
			}

			log, err := logging.New(config.LogConfig{Level: logLevel})
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			api := client.New(serverURL, token)
			st, err := api.State(cmd.Context(), eventID)
			if err != nil {
				return err
			}
			if fitted, changed := fitHeartbeat(heartbeat, st.LeaseSeconds); changed {
				log.Warn("heartbeat must be below the server's lease length, using half the lease",
					zap.Duration("requested", heartbeat), zap.Int("lease_seconds", st.LeaseSeconds),
					zap.Duration("heartbeat", fitted))
				heartbeat = fitted
			}

			holderID := "cli-" + uuid.NewString()
			var last host.State
			r := host.NewRunner(&host.Remote{Client: api}, clock.New(), host.Config{
				EventID:         eventID,
				HolderID:        holderID,
				Heartbeat:       heartbeat,
				StopEventOnExit: stopOnExit,
				OnChange: func(s host.State) {
					if s.Role != last.Role {
						fmt.Fprintf(cmd.OutOrStdout(), "role: %s\n", s.Role)
					}
					if s.Role == host.RoleHost && s.Snapshot.Token != last.Snapshot.Token {
						fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", s.Snapshot.Token)
					}
					last = s
				},
			}, log)

			err = r.Run(cmd.Context())
			select {
			case <-r.Released():
			case <-time.After(releaseWait):
			}
			if errors.Is(err, cmd.Context().Err()) {
				return nil
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&serverURL, "server", "http://localhost:8080", "server base URL")
	flags.StringVar(&token, "token", "", "organizer bearer token")
	flags.StringVar(&eventID, "event", "", "event id")
	flags.DurationVar(&heartbeat, "heartbeat", lease.DefaultHeartbeat, "lease heartbeat interval")
	flags.BoolVar(&stopOnExit, "stop-on-exit", false, "stop the event when this host exits")
	flags.StringVar(&logLevel, "log-level", "info", "log level")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

// fitHeartbeat returns half the server's lease when heartbeat would not renew the lease
// before it lapses. An unknown lease length leaves heartbeat alone.
func fitHeartbeat(heartbeat time.Duration, leaseSeconds int) (time.Duration, bool) {
	lease := time.Duration(leaseSeconds) * time.Second
	if lease <= 0 || (heartbeat > 0 && heartbeat < lease) {
		return heartbeat, false
	}
	return lease / 2, true
}
