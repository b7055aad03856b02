package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var ErrEmptyPrompt = errors.New("empty prompt")

// GenerateResponse carries generated SQL and its analysis.
type GenerateResponse struct {
	SQL        string              `json:"sql"`
	LimitAdded bool                `json:"limit_added,omitempty"`
	Report     domain.SafetyReport `json:"report"`
	Defect     *domain.Defect      `json:"defect,omitempty"`
}

// GenerateService asks the upstream generator for SQL and runs the result
// through the analyzer and defect detector. It never previews.
type GenerateService struct {
	gen     port.SQLGenerator
	preview *PreviewService
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewGenerateService(gen port.SQLGenerator, preview *PreviewService, logger *slog.Logger, tracer trace.Tracer) *GenerateService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &GenerateService{gen: gen, preview: preview, logger: logger, tracer: tracer}
}

func (s *GenerateService) Generate(ctx context.Context, prompt string) (*GenerateResponse, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	ctx, span := s.tracer.Start(ctx, "GenerateService.Generate")
	defer span.End()

	sql, err := s.gen.Generate(ctx, prompt, s.preview.Policy())
	if err != nil {
		s.logger.WarnContext(ctx, "sql generation failed",
			slog.String("error.type", "upstream_error"),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generating sql: %w", err)
	}

	resp := &GenerateResponse{SQL: sql}
	if fixed := s.preview.FixLimit(sql); fixed != sql {
		resp.SQL = fixed
		resp.LimitAdded = true
	}
	resp.Report = s.preview.Analyze(ctx, resp.SQL)
	resp.Defect = s.preview.Detect(ctx, resp.SQL)

	span.SetAttributes(
		attribute.String("db.statement", resp.SQL),
		attribute.Bool("audiencelens.report.valid", resp.Report.IsValid),
	)
	return resp, nil
}
