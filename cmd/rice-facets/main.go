// Package main provides the rice-facets command line client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rice-facets",
		Short: "Rice Facets - faceted search from the command line",
		Long: `Rice Facets builds faceted search queries from a set of configured
widgets, runs them against a Solr-style HTTP backend or an embedded bleve
index, and keeps the search state in a navigation file so it survives
between runs.

Examples:
  rice-facets search cats                      # free-text search
  rice-facets search --select color=red        # add a facet filter
  rice-facets nav back                         # step back one search
  rice-facets watch                            # follow navigation changes`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		previewCmd(),
		searchCmd(),
		watchCmd(),
		navCmd(),
		eventsCmd(),
		versionCmd(),
	)

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rice-facets %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
