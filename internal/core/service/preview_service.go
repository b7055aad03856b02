package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/audiencelens/internal/core/domain"
	"github.com/guillermoBallester/audiencelens/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// Reasons a preview run is blocked.
const (
	BlockDefect           = "defect"
	BlockInvalidStatement = "invalid_statement"
	BlockPolicy           = "policy"
)

// PreviewResponse is the outcome of one preview run. Result is nil when the
// run was blocked.
type PreviewResponse struct {
	RunID           string                `json:"run_id"`
	SQL             string                `json:"sql"`
	Blocked         bool                  `json:"blocked"`
	BlockReason     string                `json:"block_reason,omitempty"`
	Defect          *domain.Defect        `json:"defect,omitempty"`
	ValidationError string                `json:"validation_error,omitempty"`
	Report          domain.SafetyReport   `json:"report"`
	Result          *domain.PreviewResult `json:"result,omitempty"`
}

// PreviewService runs the gate → analyze → simulate pipeline over the
// current catalog.
type PreviewService struct {
	store     *CatalogStore
	policy    domain.Policy
	validator port.QueryValidator
	simulator domain.Simulator
	auditor   port.QueryAuditor
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
}

// NewPreviewService wires a preview pipeline. validator may be nil to skip
// the statement-shape gate.
func NewPreviewService(store *CatalogStore, pol domain.Policy, validator port.QueryValidator, auditor port.QueryAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *PreviewService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &PreviewService{
		store:     store,
		policy:    pol,
		validator: validator,
		simulator: domain.NewSimulator(pol.HardResultCap),
		auditor:   auditor,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
	}
}

// SetJoinStrategy replaces the simulator's join fallback.
func (s *PreviewService) SetJoinStrategy(js domain.JoinStrategy) {
	s.simulator.Join = js
}

// Policy returns the safety policy the service analyzes against.
func (s *PreviewService) Policy() domain.Policy {
	return s.policy
}

// Extract returns the structural facts of sql.
func (s *PreviewService) Extract(ctx context.Context, sql string) domain.ParsedQuery {
	_, span := s.tracer.Start(ctx, "PreviewService.Extract",
		trace.WithAttributes(attribute.String("db.statement", sql)))
	defer span.End()

	return domain.Extract(sql)
}

// Analyze evaluates sql against the policy and audits the verdict.
func (s *PreviewService) Analyze(ctx context.Context, sql string) domain.SafetyReport {
	ctx, span := s.tracer.Start(ctx, "PreviewService.Analyze",
		trace.WithAttributes(attribute.String("db.statement", sql)))
	defer span.End()

	start := time.Now()
	report := domain.Analyze(sql, s.policy)
	span.SetAttributes(
		attribute.Bool("audiencelens.report.valid", report.IsValid),
		attribute.Int("audiencelens.report.warnings", len(report.Warnings)),
	)

	verdict := "valid"
	if !report.IsValid {
		verdict = "invalid"
	}
	s.auditor.Record(ctx, port.AuditEntry{
		RunID:      uuid.NewString(),
		Tool:       toolNameFromCtx(ctx),
		SQL:        sql,
		Verdict:    verdict,
		Warnings:   report.Warnings,
		Errors:     report.Errors,
		DurationMS: time.Since(start).Milliseconds(),
	})
	return report
}

// Detect returns the first defect of sql against the current catalog, or nil.
func (s *PreviewService) Detect(ctx context.Context, sql string) *domain.Defect {
	_, span := s.tracer.Start(ctx, "PreviewService.Detect",
		trace.WithAttributes(attribute.String("db.statement", sql)))
	defer span.End()

	d := domain.Detect(sql, s.store.Catalog())
	if d != nil {
		span.SetAttributes(attribute.String("audiencelens.defect", d.Message))
	}
	return d
}

// Validate runs the statement-shape gate. It returns nil when no validator
// is configured.
func (s *PreviewService) Validate(sql string) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.Validate(sql)
}

// FixLimit appends the policy's default LIMIT when sql has none.
func (s *PreviewService) FixLimit(sql string) string {
	return domain.AddDefaultLimit(sql, s.policy)
}

// Preview gates sql through the defect detector, the statement validator
// and the safety analyzer, then simulates it against catalog sample rows.
// Masked columns are masked in the returned rows. A blocked run is not an
// error; the response says why.
func (s *PreviewService) Preview(ctx context.Context, sql string) (*PreviewResponse, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, fmt.Errorf("preview: %w", domain.ErrEmptyQuery)
	}

	resp := &PreviewResponse{RunID: uuid.NewString(), SQL: sql}
	ctx, span := s.tracer.Start(ctx, "PreviewService.Preview",
		trace.WithAttributes(
			attribute.String("audiencelens.run_id", resp.RunID),
			attribute.String("db.statement", sql),
		),
	)
	defer span.End()

	start := time.Now()
	cat := s.store.Catalog()
	resp.Report = domain.Analyze(sql, s.policy)

	switch {
	case s.block(resp, domain.Detect(sql, cat)):
	case s.validator != nil && s.blockInvalid(resp, s.validator.Validate(sql)):
	case !resp.Report.IsValid:
		resp.Blocked = true
		resp.BlockReason = BlockPolicy
	default:
		res := s.simulator.Simulate(domain.Extract(sql), cat)
		res.Rows = domain.MaskRows(res.Rows, cat.MaskSpec())
		resp.Result = &res
	}

	durationMS := time.Since(start).Milliseconds()
	s.inst.RecordPipelineDuration(ctx, float64(durationMS))

	entry := port.AuditEntry{
		RunID:      resp.RunID,
		Tool:       toolNameFromCtx(ctx),
		SQL:        sql,
		Verdict:    "previewed",
		Warnings:   resp.Report.Warnings,
		Errors:     resp.Report.Errors,
		DurationMS: durationMS,
	}

	if resp.Blocked {
		entry.Verdict = "blocked:" + resp.BlockReason
		if resp.Defect != nil {
			entry.Defect = resp.Defect.Message
		}
		s.logger.WarnContext(ctx, "preview blocked",
			slog.String("audiencelens.run_id", resp.RunID),
			slog.String("db.statement", sql),
			slog.String("error.type", resp.BlockReason),
		)
		span.SetStatus(codes.Error, "blocked: "+resp.BlockReason)
		s.inst.IncrementBlocked(ctx, resp.BlockReason)
	} else {
		entry.RowsReturned = len(resp.Result.Rows)
		span.SetAttributes(
			attribute.Int("db.response.rows", len(resp.Result.Rows)),
			attribute.Bool("audiencelens.preview.approximate", resp.Result.Approximate),
		)
		s.inst.IncrementPreviews(ctx)
	}
	s.auditor.Record(ctx, entry)

	return resp, nil
}

func (s *PreviewService) block(resp *PreviewResponse, d *domain.Defect) bool {
	if d == nil {
		return false
	}
	resp.Blocked = true
	resp.BlockReason = BlockDefect
	resp.Defect = d
	return true
}

func (s *PreviewService) blockInvalid(resp *PreviewResponse, err error) bool {
	if err == nil {
		return false
	}
	resp.Blocked = true
	resp.BlockReason = BlockInvalidStatement
	resp.ValidationError = err.Error()
	return true
}
