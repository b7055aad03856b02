package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/guillermoBallester/audiencelens/internal/adapter/catalog"
	"github.com/guillermoBallester/audiencelens/internal/adapter/mysql"
	"github.com/guillermoBallester/audiencelens/internal/adapter/postgres"
	"github.com/guillermoBallester/audiencelens/internal/config"
	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/port"
	"github.com/guillermoBallester/audiencelens/internal/core/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var v flagValues
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture a catalog file from a live database",
		Long: `snapshot reads table and column metadata, foreign keys and a random
sample of rows from PostgreSQL or MySQL, and writes them as a catalog file.
The connection is opened read-only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadSnapshot(v.overrides(cmd.Flags()))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runSnapshot(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	bindSnapshotFlags(cmd.Flags(), &v)
	return cmd
}

func runSnapshot(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg.LogLevel)
	start := time.Now()

	logger.Info("starting snapshot", slog.String("database", redactDSN(cfg.DatabaseURL)))

	snap, err := openSnapshotter(ctx, cfg)
	if err != nil {
		return err
	}
	defer snap.Close()

	var bar *progressbar.ProgressBar
	tables, err := service.Snapshot(ctx, snap, logger, func(done, total int, table string) {
		if bar == nil {
			bar = newProgressBar(total)
		}
		bar.Describe(table)
		_ = bar.Set(done)
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if cfg.Output == "" {
		return catalog.Encode(stdout, tables)
	}
	if err := catalog.WriteFile(cfg.Output, tables); err != nil {
		return err
	}
	printSnapshotSummary(os.Stderr, cfg.Output, tables, time.Since(start))
	return nil
}

func openSnapshotter(ctx context.Context, cfg *config.Config) (port.Snapshotter, error) {
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, err
	}

	switch driver {
	case config.DriverMySQL:
		snap, err := mysql.Open(ctx, cfg.DatabaseURL, cfg.SampleSize)
		if err != nil {
			return nil, fmt.Errorf("connecting to mysql: %w", err)
		}
		return snap, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
			MaxConns:        cfg.PoolMaxConns,
			MinConns:        cfg.PoolMinConns,
			MaxConnLifetime: cfg.PoolMaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return postgres.NewSnapshotter(pool, cfg.Schemas, cfg.SampleSize), nil
	}
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("snapshot"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetItsString("tables"),
	)
}

func printSnapshotSummary(w io.Writer, path string, tables []domain.Table, elapsed time.Duration) {
	var cols, rows int
	for _, t := range tables {
		cols += len(t.Columns)
		rows += len(t.SampleRows)
	}
	_, _ = color.New(color.FgGreen, color.Bold).Fprintf(w, "✓ wrote %s\n", path)
	fmt.Fprintf(w, "  %d tables, %d columns, %d sample rows in %s\n",
		len(tables), cols, rows, elapsed.Round(time.Millisecond))
}

// redactDSN masks the password of a DSN for logging. URL-style DSNs that
// do not parse are fully masked.
func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		// user:pass@tcp(host)/db
		at := strings.LastIndex(dsn, "@")
		if at < 0 {
			return dsn
		}
		if user, _, ok := strings.Cut(dsn[:at], ":"); ok {
			return user + ":***" + dsn[at:]
		}
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
