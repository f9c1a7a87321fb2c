package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/archival/policyfile"
	"mercator-hq/archivist/pkg/cli"
)

var policySetFlags struct {
	archiveAfter int64
	archiveUnit  string
	deleteAfter  int64
	deleteUnit   string
	ageColumn    string
}

var policyApplyPrune bool

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage retention policies",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retention policies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("policy list", func(ctx context.Context, a *app) error {
			policies, err := a.service.ListPolicies(ctx, a.operator())
			if err != nil {
				return err
			}
			return printResult(cmd, cli.PolicyTable(policies))
		})
	},
}

var policySetCmd = &cobra.Command{
	Use:   "set TABLE",
	Short: "Create or replace the retention policy of TABLE",
	Long: `Create or replace the retention policy of TABLE.

Examples:
  archivist policy set orders --archive-after 6 --archive-unit MONTHS \
      --delete-after 5 --delete-unit YEARS
  archivist policy set audit_log --archive-after 30 --archive-unit DAYS \
      --delete-after 0 --delete-unit DAYS --age-column logged_at`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("policy set", func(ctx context.Context, a *app) error {
			policy, err := a.service.ConfigurePolicy(ctx, a.operator(), archival.RetentionPolicy{
				TableName:    args[0],
				ArchiveAfter: policySetFlags.archiveAfter,
				ArchiveUnit:  archival.ParseTimeUnit(policySetFlags.archiveUnit),
				DeleteAfter:  policySetFlags.deleteAfter,
				DeleteUnit:   archival.ParseTimeUnit(policySetFlags.deleteUnit),
				AgeColumn:    policySetFlags.ageColumn,
			})
			if err != nil {
				return err
			}
			return printResult(cmd, cli.PolicyTable{*policy})
		})
	},
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete TABLE",
	Short: "Remove the retention policy of TABLE",
	Long: `Remove the retention policy of TABLE. Rows already in the archive
table are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("policy delete", func(ctx context.Context, a *app) error {
			if err := a.service.DeletePolicy(ctx, a.operator(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Policy for %s deleted\n", args[0])
			return nil
		})
	},
}

var policyApplyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Apply a YAML policy file to the control store",
	Long: `Upsert every policy and grant in FILE. With --prune, policies absent
from FILE are removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("policy apply", func(ctx context.Context, a *app) error {
			res, err := policyfile.LoadAndSync(ctx, a.store, args[0], policyApplyPrune, slog.Default())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Applied %d policies and %d grants", res.Policies, res.Grants)
			if len(res.Pruned) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", pruned %v", res.Pruned)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policySetCmd, policyDeleteCmd, policyApplyCmd)

	f := policySetCmd.Flags()
	f.Int64Var(&policySetFlags.archiveAfter, "archive-after", 0, "age after which source rows are archived")
	f.StringVar(&policySetFlags.archiveUnit, "archive-unit", "", "unit of --archive-after (MINUTES, HOURS, DAYS, WEEKS, MONTHS, YEARS)")
	f.Int64Var(&policySetFlags.deleteAfter, "delete-after", 0, "age after which archived rows are purged")
	f.StringVar(&policySetFlags.deleteUnit, "delete-unit", "", "unit of --delete-after")
	f.StringVar(&policySetFlags.ageColumn, "age-column", "", "timestamp column compared against the thresholds (default created_at)")
	_ = policySetCmd.MarkFlagRequired("archive-after")
	_ = policySetCmd.MarkFlagRequired("archive-unit")
	_ = policySetCmd.MarkFlagRequired("delete-unit")

	policyApplyCmd.Flags().BoolVar(&policyApplyPrune, "prune", false, "delete policies not present in the file")
}
