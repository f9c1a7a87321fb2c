package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/archivist/pkg/archival/policyfile"
	"mercator-hq/archivist/pkg/cli"
)

var validatePolicyFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and an optional policy file",
	Long: `Load the configuration with environment overrides and validate it
without opening any database.

Examples:
  archivist validate --config config.yaml
  archivist validate --policies policies.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Configuration valid (%s)\n", cfgFile)

		path := validatePolicyFile
		if path == "" {
			path = cfg.Policies.File
		}
		if path == "" {
			return nil
		}
		file, err := policyfile.Load(path)
		if err != nil {
			return cli.NewConfigError(path, err.Error())
		}
		fmt.Fprintf(out, "✓ Policy file valid (%s): %d policies, %d grants\n", path, len(file.Policies), len(file.Grants))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validatePolicyFile, "policies", "", "policy file to validate (default policies.file from config)")
}
