package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RunContext carries the observability state of one pipeline run.
type RunContext struct {
	RunID     string
	Name      string
	StartTime time.Time
	Metrics   *Metrics
}

// NewRunContext creates a run context. If metrics is nil, metric recording
// is silently skipped.
func NewRunContext(runID, name string, metrics *Metrics) *RunContext {
	return &RunContext{
		RunID:     runID,
		Name:      name,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type runContextKey struct{}

// WithRunContext stores a RunContext in the context.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext from context, or nil.
func RunContextFromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return rc
	}
	return nil
}

// StartStage starts a span for one (task, stage) execution.
func (rc *RunContext) StartStage(ctx context.Context, stage, task int) (context.Context, trace.Span) {
	ctx, span := StartSpan(WithRunContext(ctx, rc), SpanStage)
	span.SetAttributes(
		attribute.String(AttrRunID, rc.RunID),
		attribute.String(AttrRunName, rc.Name),
		attribute.Int(AttrStage, stage),
		attribute.Int(AttrTask, task),
	)
	return ctx, span
}

// EndStage ends the span and records the stage metrics.
func (rc *RunContext) EndStage(ctx context.Context, span trace.Span, stage int, started time.Time, err error, recovered bool) {
	duration := time.Since(started)
	status := "ok"
	switch {
	case err != nil && recovered:
		status = "recovered"
		span.RecordError(err)
	case err != nil:
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	rc.Metrics.RecordStage(ctx, rc.Name, stage, duration, err, recovered)
}

// Elapsed returns the time since the run started.
func (rc *RunContext) Elapsed() time.Duration {
	return time.Since(rc.StartTime)
}
