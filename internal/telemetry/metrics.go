package telemetry

import (
	"context"

	"github.com/guillermoBallester/audiencelens/internal/core/port"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	PipelineDuration metric.Float64Histogram
	PreviewCount     metric.Int64Counter
	BlockedCount     metric.Int64Counter
	ToolDuration     metric.Float64Histogram
}

var _ port.Instrumentation = (*Instruments)(nil)

// NewInstruments creates metric instruments from the global MeterProvider.
// Returns nil-safe instruments: if creation fails, noop instruments are used.
func NewInstruments() *Instruments {
	meter := otel.Meter(scopeName)
	return newInstrumentsFromMeter(meter)
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	meter := noop.NewMeterProvider().Meter(scopeName)
	return newInstrumentsFromMeter(meter)
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	pipelineDuration, _ := meter.Float64Histogram("audiencelens.preview.duration",
		metric.WithDescription("Preview pipeline duration in milliseconds, from gate to masked rows"),
		metric.WithUnit("ms"),
	)
	previewCount, _ := meter.Int64Counter("audiencelens.preview.count",
		metric.WithDescription("Preview runs that produced a result"),
	)
	blockedCount, _ := meter.Int64Counter("audiencelens.preview.blocked",
		metric.WithDescription("Preview runs blocked before simulation, by reason"),
	)
	toolDuration, _ := meter.Float64Histogram("audiencelens.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		PipelineDuration: pipelineDuration,
		PreviewCount:     previewCount,
		BlockedCount:     blockedCount,
		ToolDuration:     toolDuration,
	}
}

func (i *Instruments) RecordPipelineDuration(ctx context.Context, ms float64) {
	i.PipelineDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementPreviews(ctx context.Context) {
	i.PreviewCount.Add(ctx, 1)
}

func (i *Instruments) IncrementBlocked(ctx context.Context, reason string) {
	i.BlockedCount.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
