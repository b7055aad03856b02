package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/guillermoBallester/audiencelens/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

// errCheckFailed signals a query that failed check without an operational
// error; the report has already been printed.
var errCheckFailed = errors.New("check failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:   "audiencelens",
		Short: "Safety analysis and sample-based preview for audience SQL",
		Long: `audiencelens checks audience queries against a safety policy, finds
defects against a schema catalog, and previews the matching rows using the
catalog's sample data. It never runs queries against a live database.

Examples:

  audiencelens snapshot --database-url postgres://... --output catalog.yaml
  audiencelens check --catalog catalog.yaml "SELECT id FROM users LIMIT 10"
  audiencelens serve --catalog catalog.yaml
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.LoadDotEnv(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newSnapshotCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "audiencelens %s\n", version)
		},
	})
	return root
}

// newLogger writes JSON logs to stderr; stdout is reserved for the MCP
// stdio transport and command output.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
