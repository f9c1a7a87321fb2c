package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/archivist/pkg/archival/query"
	"mercator-hq/archivist/pkg/cli"
	"mercator-hq/archivist/pkg/security/auth"
)

var queryFlags struct {
	startDate string
	endDate   string
	sort      string
	page      int
	size      int
	user      string
	roles     string
}

var queryCmd = &cobra.Command{
	Use:   "query TABLE",
	Short: "Read one page of a table's archive",
	Long: `Read archived rows of TABLE from its "_archive" companion table.

Without --as the query runs as the CLI operator, who holds the admin role.
With --as the caller's table grants are enforced as they are for the API.

Examples:
  archivist query orders
  archivist query orders --start 2024-01-01 --end 2024-03-31 --sort desc
  archivist query orders --page 2 --size 50 --as alice --output csv`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&queryFlags.startDate, "start", "", "inclusive lower bound on the age column")
	queryCmd.Flags().StringVar(&queryFlags.endDate, "end", "", "inclusive upper bound on the age column")
	queryCmd.Flags().StringVar(&queryFlags.sort, "sort", "", "sort order on the age column (asc, desc)")
	queryCmd.Flags().IntVar(&queryFlags.page, "page", 0, "zero-based page number")
	queryCmd.Flags().IntVar(&queryFlags.size, "size", 0, "page size (default from config)")
	queryCmd.Flags().StringVar(&queryFlags.user, "as", "", "run the query as this user")
	queryCmd.Flags().StringVar(&queryFlags.roles, "roles", "", "comma-separated roles of the --as user")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	values := url.Values{}
	for name, v := range map[string]string{
		"startDate": queryFlags.startDate,
		"endDate":   queryFlags.endDate,
		"sort":      queryFlags.sort,
	} {
		if v != "" {
			values.Set(name, v)
		}
	}
	if cmd.Flags().Changed("page") {
		values.Set("page", strconv.Itoa(queryFlags.page))
	}
	if cmd.Flags().Changed("size") {
		values.Set("size", strconv.Itoa(queryFlags.size))
	}

	req, err := query.ParseRequest(args[0], values)
	if err != nil {
		return cli.NewCommandError("query", err)
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("query", err)
	}
	defer a.Close()

	caller := a.operator()
	if queryFlags.user != "" {
		caller = auth.Identity{Username: queryFlags.user, Roles: auth.ParseRoles(queryFlags.roles)}
	}

	records, err := a.service.QueryArchive(ctx, caller, *req)
	if err != nil {
		return cli.NewCommandError("query", err)
	}
	return printResult(cmd, cli.NewRecordTable(records))
}
