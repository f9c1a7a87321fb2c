package main

import (
	"context"

	"github.com/spf13/cobra"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/cli"
)

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Manage per-user archive read access",
}

var grantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List table access grants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("grant list", func(ctx context.Context, a *app) error {
			grants, err := a.service.ListGrants(ctx, a.operator())
			if err != nil {
				return err
			}
			return printResult(cmd, cli.GrantTable(grants))
		})
	},
}

var grantSetCmd = &cobra.Command{
	Use:   "set USER TABLES",
	Short: "Replace the tables USER may read",
	Long: `Replace the set of tables USER may read with TABLES, a comma-separated
list of source table names.

Example:
  archivist grant set alice orders,invoices`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("grant set", func(ctx context.Context, a *app) error {
			grant, err := a.service.AssignTables(ctx, a.operator(), archival.TableAccessGrant{
				Principal: args[0],
				Tables:    archival.ParseTableList(args[1]),
			})
			if err != nil {
				return err
			}
			return printResult(cmd, cli.GrantTable{*grant})
		})
	},
}

func init() {
	rootCmd.AddCommand(grantCmd)
	grantCmd.AddCommand(grantListCmd, grantSetCmd)
}
