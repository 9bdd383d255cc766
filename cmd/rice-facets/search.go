package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-facets/internal/fragment"
)

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [terms...]",
		Short: "Print the backend query and fragment without searching",
		Long: `Restore the saved search, apply the given changes and print the
backend query string and the fragment that would be saved. Nothing is sent
to the backend and the navigation state is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			encoded, _ := cmd.Flags().GetBool("encoded")

			s, err := openSession(cfg, log, sessionOptions{offline: true})
			if err != nil {
				return err
			}
			defer s.Close()

			state := s.manager.Restore(cmd.Context())
			changed, err := selectionFromFlags(cmd, args).apply(s.manager)
			if err != nil {
				return err
			}

			q := s.manager.Build(resolveStart(cmd, state.Start, changed))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "query:    %s\n", s.manager.QueryString(q, !encoded))
			fmt.Fprintf(out, "fragment: #%s\n", fragment.Format(q))
			return nil
		},
	}

	addSelectionFlags(cmd)
	cmd.Flags().Bool("encoded", false, "print the query string percent-encoded, as sent")
	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [terms...]",
		Short: "Run a search and save it as the current navigation entry",
		Long: `Restore the saved search, apply the given changes, run the query
and print the results and facet counts. The search is saved in the
navigation state, so the next run starts from it and 'nav back' returns to
the previous one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")

			s, err := openSession(cfg, log, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			state := s.manager.Restore(ctx)
			changed, err := selectionFromFlags(cmd, args).apply(s.manager)
			if err != nil {
				return err
			}

			seq, err := s.manager.RunRequest(ctx, resolveStart(cmd, state.Start, changed))
			if err != nil {
				return err
			}
			s.async.Wait()

			if err := s.failures.Err(); err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			r := collectReport(seq, s.manager.LastKnownFragment(), s.widgets)
			return writeReport(cmd.OutOrStdout(), format, r, cfg.Query.FL)
		},
	}

	addSelectionFlags(cmd)
	return cmd
}
