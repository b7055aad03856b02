package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordPipelineDuration(ctx context.Context, ms float64)
	IncrementPreviews(ctx context.Context)
	IncrementBlocked(ctx context.Context, reason string)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordPipelineDuration(context.Context, float64) {}
func (NoopInstrumentation) IncrementPreviews(context.Context)               {}
func (NoopInstrumentation) IncrementBlocked(context.Context, string)        {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)     {}
