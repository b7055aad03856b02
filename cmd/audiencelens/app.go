package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/audiencelens/internal/adapter/catalog"
	"github.com/guillermoBallester/audiencelens/internal/adapter/llm"
	"github.com/guillermoBallester/audiencelens/internal/adapter/mcp"
	"github.com/guillermoBallester/audiencelens/internal/adapter/policy"
	"github.com/guillermoBallester/audiencelens/internal/audit"
	"github.com/guillermoBallester/audiencelens/internal/config"
	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/port"
	"github.com/guillermoBallester/audiencelens/internal/core/service"
	"go.opentelemetry.io/otel/trace"
)

// app is the wired service graph shared by serve and check.
type app struct {
	policy   *policy.Policy
	store    *service.CatalogStore
	services mcp.Services
	auditor  port.QueryAuditor
}

func (a *app) Close() error {
	return a.auditor.Close()
}

// buildApp loads the policy and catalog and wires the services. tracer and
// inst may be nil.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) (*app, error) {
	pol := policy.Default()
	if cfg.PolicyFile != "" {
		var err error
		if pol, err = policy.LoadFromFile(cfg.PolicyFile); err != nil {
			return nil, fmt.Errorf("loading policy: %w", err)
		}
		logger.Info("policy loaded", slog.String("file", cfg.PolicyFile))
	}

	src, err := newCatalogSource(cfg)
	if err != nil {
		return nil, err
	}

	store := service.NewCatalogStore(nil)
	catalogSvc := service.NewCatalogService(store, policy.NewSource(src, pol), logger)
	if err := catalogSvc.Reload(ctx); err != nil {
		return nil, err
	}

	var auditor port.QueryAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		auditor = fa
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	preview := service.NewPreviewService(store, pol.Safety, domain.NewPgQueryValidator(), auditor, logger, tracer, inst)

	a := &app{
		policy:  pol,
		store:   store,
		auditor: auditor,
		services: mcp.Services{
			Catalog: catalogSvc,
			Preview: preview,
		},
	}

	if cfg.LLM.Enabled() {
		gen, err := llm.New(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
			Timeout:  cfg.LLM.Timeout,
		}, logger)
		if err != nil {
			_ = auditor.Close()
			return nil, err
		}
		a.services.Generate = service.NewGenerateService(gen, preview, logger, tracer)
		logger.Info("sql generation enabled",
			slog.String("provider", cfg.LLM.Provider),
			slog.String("model", cfg.LLM.Model))
	}

	return a, nil
}

func newCatalogSource(cfg *config.Config) (port.CatalogSource, error) {
	if cfg.CatalogFile != "" {
		return catalog.NewFileSource(cfg.CatalogFile), nil
	}

	bucket, key, err := catalog.ParseObjectURL(cfg.CatalogURL)
	if err != nil {
		return nil, err
	}
	src, err := catalog.NewObjectSource(catalog.ObjectConfig{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
		Bucket:    bucket,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return src, nil
}
