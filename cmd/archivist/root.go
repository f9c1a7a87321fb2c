package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/archivist/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "archivist",
	Short: "Archivist - cross-database archival mover",
	Long: `Archivist enforces per-table retention policies across databases.

On a schedule (or on demand) it:
  - Moves rows older than a table's archive threshold into "<table>_archive"
    on the archive database, then deletes exactly the moved rows
  - Purges archived rows older than the table's delete threshold

Archived rows are served back to authorized users through a paginated,
access-checked HTTP API.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code matching the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, csv")
}

// printResult writes data to stdout in the --output format.
func printResult(cmd *cobra.Command, data any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}
