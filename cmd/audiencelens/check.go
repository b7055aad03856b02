package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/guillermoBallester/audiencelens/internal/config"
	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/service"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	fix     bool
	preview bool
	json    bool
}

// checkReport is the --json output of check.
type checkReport struct {
	SQL     string                   `json:"sql"`
	Fixed   bool                     `json:"fixed,omitempty"`
	Invalid string                   `json:"validation_error,omitempty"`
	Report  domain.SafetyReport      `json:"report"`
	Defect  *domain.Defect           `json:"defect,omitempty"`
	Preview *service.PreviewResponse `json:"preview,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var (
		v    flagValues
		opts checkOptions
	)
	cmd := &cobra.Command{
		Use:   "check [sql | -]",
		Short: "Analyze a query against the policy and catalog",
		Long: `check prints the safety report and the first defect found in a query.
Pass "-" to read the query from stdin. The command exits non-zero when the
query is invalid or has a defect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readQuery(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, err := config.Load(v.overrides(cmd.Flags()))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := newLogger(cfg.LogLevel)
			a, err := buildApp(cmd.Context(), cfg, logger, nil, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return runCheck(cmd.Context(), cmd.OutOrStdout(), a.services.Preview, sql, opts)
		},
	}
	bindCatalogFlags(cmd.Flags(), &v)
	cmd.Flags().StringVar(&v.auditLog, "audit-log", "", "append NDJSON audit records to this file")
	cmd.Flags().BoolVar(&opts.fix, "fix", false, "append the default LIMIT when the query has none")
	cmd.Flags().BoolVar(&opts.preview, "preview", false, "simulate the query against catalog samples")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the report as JSON")
	return cmd
}

func readQuery(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading query from stdin: %w", err)
	}
	return string(data), nil
}

// runCheck writes the report for sql to out and returns errCheckFailed when
// the query is not a plain SELECT, violates the policy or has a defect.
func runCheck(ctx context.Context, out io.Writer, preview *service.PreviewService, sql string, opts checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(sql) == "" {
		return domain.ErrEmptyQuery
	}

	rep := checkReport{SQL: sql}
	if opts.fix {
		rep.SQL = preview.FixLimit(sql)
		rep.Fixed = rep.SQL != sql
	}
	rep.Report = preview.Analyze(ctx, rep.SQL)
	rep.Defect = preview.Detect(ctx, rep.SQL)
	if err := preview.Validate(rep.SQL); err != nil {
		rep.Invalid = err.Error()
	}

	if opts.preview {
		resp, err := preview.Preview(ctx, rep.SQL)
		if err != nil {
			return err
		}
		rep.Preview = resp
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	} else {
		printCheck(out, rep)
	}

	if !rep.Report.IsValid || rep.Defect != nil || rep.Invalid != "" {
		return errCheckFailed
	}
	return nil
}

func printCheck(out io.Writer, rep checkReport) {
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	if rep.Fixed {
		_, _ = warn.Fprintln(out, "LIMIT added:")
		fmt.Fprintf(out, "  %s\n\n", rep.SQL)
	}

	if rep.Invalid != "" {
		_, _ = bad.Fprintf(out, "✗ not a single read-only SELECT: %s\n", rep.Invalid)
	}
	if rep.Report.IsValid {
		_, _ = ok.Fprintln(out, "✓ query passes the safety policy")
	} else {
		_, _ = bad.Fprintln(out, "✗ query violates the safety policy")
	}
	fmt.Fprintf(out, "  tables:       %s\n", strings.Join(rep.Report.TablesUsed, ", "))
	fmt.Fprintf(out, "  date filter:  %s\n", yesNo(rep.Report.HasDateFilter))
	fmt.Fprintf(out, "  result limit: %s\n", yesNo(rep.Report.HasResultLimit))
	if rep.Report.EstimatedDateSpan != nil {
		fmt.Fprintf(out, "  date span:    %s\n", *rep.Report.EstimatedDateSpan)
	}
	for _, e := range rep.Report.Errors {
		_, _ = bad.Fprintf(out, "  error: %s\n", e)
	}
	for _, w := range rep.Report.Warnings {
		_, _ = warn.Fprintf(out, "  warning: %s\n", w)
	}

	if d := rep.Defect; d != nil {
		fmt.Fprintln(out)
		_, _ = bad.Fprintf(out, "defect on line %d: %s\n", d.Line, d.Message)
		if d.Suggestion != "" {
			fmt.Fprintf(out, "  suggestion: %s\n", d.Suggestion)
		}
	}

	if p := rep.Preview; p != nil {
		fmt.Fprintln(out)
		if p.Blocked {
			_, _ = bad.Fprintf(out, "preview blocked: %s\n", p.BlockReason)
			return
		}
		_, _ = bold.Fprintf(out, "preview: %d row(s)", len(p.Result.Rows))
		if p.Result.Truncated {
			fmt.Fprint(out, " (truncated)")
		}
		if p.Result.Approximate {
			fmt.Fprint(out, " (approximate)")
		}
		fmt.Fprintln(out)
		for _, row := range p.Result.Rows {
			fmt.Fprintf(out, "  %s\n", formatRow(row))
		}
	}
}

func formatRow(row domain.Row) string {
	data, err := json.Marshal(row)
	if err != nil {
		slog.Debug("formatting preview row", slog.String("error", err.Error()))
		return fmt.Sprint(map[string]any(row))
	}
	return string(data)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
