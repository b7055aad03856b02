package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guillermoBallester/audiencelens/internal/adapter/mcp"
	"github.com/guillermoBallester/audiencelens/internal/config"
	"github.com/guillermoBallester/audiencelens/internal/core/port"
	"github.com/guillermoBallester/audiencelens/internal/core/service"
	"github.com/guillermoBallester/audiencelens/internal/telemetry"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var v flagValues
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog and preview tools over MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v.overrides(cmd.Flags()))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	bindServeFlags(cmd.Flags(), &v)
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel)

	logger.Info("starting audiencelens",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.String("transport", cfg.Transport),
		slog.Bool("otel", cfg.OTelEnabled),
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var (
		tracer trace.Tracer         = telemetry.NoopTracer()
		inst   port.Instrumentation = telemetry.NoopInstruments()
	)
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, telemetry.Settings{
			ServiceName: "audiencelens",
			Version:     version,
			Transport:   cfg.Transport,
		})
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		tracer = provider.Tracer()
		inst = telemetry.NewInstruments()
	}

	a, err := buildApp(ctx, cfg, logger, tracer, inst)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if cfg.DryRun {
		logger.Info("dry run complete",
			slog.Int("tables", a.store.Catalog().Len()),
			slog.Any("policy", a.policy.Safety),
			slog.Bool("generation", a.services.Generate != nil),
		)
		return nil
	}

	if cfg.ReloadInterval > 0 {
		go reloadLoop(ctx, a.services.Catalog, cfg.ReloadInterval, logger)
	}

	mcpServer := mcp.NewServer(version, a.services, logger, tracer, inst)

	switch cfg.Transport {
	case "http":
		return serveHTTP(ctx, cfg, mcpServer, logger)
	default:
		logger.Info("serving MCP over stdio")
		if err := mcpserver.NewStdioServer(mcpServer).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// reloadLoop refreshes the catalog until ctx is done. A failed reload keeps
// the previous catalog.
func reloadLoop(ctx context.Context, catalog *service.CatalogService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := catalog.Reload(ctx); err != nil {
				logger.Warn("catalog reload failed, keeping previous catalog", slog.String("error", err.Error()))
			}
		}
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, mcpServer *mcpserver.MCPServer, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(mcpserver.NewStreamableHTTPServer(mcpServer), cfg.HTTPBearerToken, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over http", slog.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
