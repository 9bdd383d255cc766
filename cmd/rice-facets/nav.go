package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-facets/internal/config"
	"github.com/ricesearch/rice-facets/internal/fragment"
	"github.com/ricesearch/rice-facets/internal/pkg/errors"
	"github.com/ricesearch/rice-facets/internal/pkg/logger"
)

func navCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nav",
		Short: "Inspect and move through the saved navigation history",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the navigation history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				nav, err := fileNavigator(cmd)
				if err != nil {
					return err
				}
				state, err := nav.State()
				if err != nil {
					return err
				}
				format, _ := cmd.Flags().GetString("format")
				return writeHistory(cmd.OutOrStdout(), format, nav.Path(), state)
			},
		},
		&cobra.Command{
			Use:   "back",
			Short: "Step one entry back, like the browser back button",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return moveAndPrint(cmd, (*fragment.FileNavigator).GoBack)
			},
		},
		&cobra.Command{
			Use:   "forward",
			Short: "Step one entry forward",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return moveAndPrint(cmd, (*fragment.FileNavigator).GoForward)
			},
		},
		&cobra.Command{
			Use:   "goto <fragment>",
			Short: "Navigate to a fragment, like typing an address",
			Example: `  rice-facets nav goto '#fq=color%3Ared&start=20'
  rice-facets nav goto ''`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return moveAndPrint(cmd, func(n *fragment.FileNavigator) { n.WriteFragment(args[0]) })
			},
		},
	)

	return cmd
}

// fileNavigator opens the configured state file. History commands make no
// sense for an in-memory navigator.
func fileNavigator(cmd *cobra.Command) (*fragment.FileNavigator, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Navigation.Type == "memory" {
		return nil, errors.ValidationError("navigation type is memory; nav commands need a state file")
	}
	return fragment.NewFileNavigator(cfg.Navigation.StateFile, logger.Discard()), nil
}

func moveAndPrint(cmd *cobra.Command, move func(n *fragment.FileNavigator)) error {
	nav, err := fileNavigator(cmd)
	if err != nil {
		return err
	}
	move(nav)
	fmt.Fprintf(cmd.OutOrStdout(), "#%s\n", nav.ReadFragment())
	return nil
}

func writeHistory(out io.Writer, format, path string, state *fragment.State) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Path string `json:"path"`
			*fragment.State
		}{path, state})
	}

	fmt.Fprintf(out, "%s\n", path)
	for i, f := range state.History {
		marker := " "
		if i == state.Position {
			marker = ">"
		}
		fmt.Fprintf(out, "%s %3d  #%s\n", marker, i, f)
	}
	return nil
}
