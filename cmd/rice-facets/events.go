package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-facets/internal/bus"
	"github.com/ricesearch/rice-facets/internal/pkg/errors"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read or replay the lifecycle event log",
	}
	cmd.PersistentFlags().Duration("since", 0, "only events newer than this (e.g. 1h)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print logged lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Bus.EventLog == "" {
				return errors.ValidationError("no event log configured (bus.event_log)")
			}
			limit, _ := cmd.Flags().GetInt("limit")
			format, _ := cmd.Flags().GetString("format")

			events, err := bus.ReadEvents(cfg.Bus.EventLog, sinceFlag(cmd), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				for _, e := range events {
					if err := enc.Encode(e); err != nil {
						return err
					}
				}
				return nil
			}
			for _, e := range events {
				fmt.Fprintf(out, "%s  %-18s %s\n",
					e.Timestamp.Format(time.RFC3339), e.Topic, e.Event.CorrelationID)
			}
			return nil
		},
	}
	show.Flags().Int("limit", 0, "print at most this many events, oldest first (0 = all)")

	replay := &cobra.Command{
		Use:   "replay",
		Short: "Publish logged events again on the configured bus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Bus.EventLog == "" {
				return errors.ValidationError("no event log configured (bus.event_log)")
			}
			path := cfg.Bus.EventLog

			// Replaying into the log being read would duplicate it.
			cfg.Bus.EventLog = ""
			b, err := bus.NewBus(cfg.Bus, log)
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := bus.Replay(cmd.Context(), path, b, sinceFlag(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events\n", n)
			return nil
		},
	}

	cmd.AddCommand(show, replay)
	return cmd
}

func sinceFlag(cmd *cobra.Command) time.Time {
	since, _ := cmd.Flags().GetDuration("since")
	if since <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-since)
}
