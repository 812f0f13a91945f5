package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for pipeline operations.
	TracerName = "mailroom"
)

// Span attribute keys
const (
	AttrRunID      = "run_id"
	AttrPipeline   = "pipeline"
	AttrSnapshotID = "snapshot_id"
	AttrBatchID    = "batch_id"
	AttrItem       = "item"
	AttrPriority   = "priority"
	AttrConfidence = "confidence"
	AttrDest       = "destination"
	AttrRule       = "rule"
	AttrOutcome    = "outcome"
	AttrErrorCode  = "error_code"
	AttrDryRun     = "dry_run"
)

// Span names
const (
	SpanRun       = "mailroom.run"
	SpanItem      = "mailroom.item"
	SpanPreflight = "mailroom.preflight"
	SpanScan      = "mailroom.collection.scan"
)

// Tracer provides tracing for pipeline runs.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider. Without a configured
// provider spans are no-ops.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartRunSpan starts the root span for one pipeline run.
func (t *Tracer) StartRunSpan(ctx context.Context, pipeline, runID string, dryRun bool) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRun,
		trace.WithAttributes(
			attribute.String(AttrPipeline, pipeline),
			attribute.String(AttrRunID, runID),
			attribute.Bool(AttrDryRun, dryRun),
		),
	)
}

// StartItemSpan starts a span for one item within a run.
func (t *Tracer) StartItemSpan(ctx context.Context, item string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanItem,
		trace.WithAttributes(
			attribute.String(AttrItem, item),
		),
	)
}

// StartSpan starts a span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// SpanHelper provides convenient methods for working with a span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetSnapshot records the snapshot being processed.
func (h *SpanHelper) SetSnapshot(id string) {
	h.span.SetAttributes(attribute.String(AttrSnapshotID, id))
}

// SetDecision sets classification and routing attributes.
func (h *SpanHelper) SetDecision(priority string, confidence int, dest, rule string) {
	h.span.SetAttributes(
		attribute.String(AttrPriority, priority),
		attribute.Int(AttrConfidence, confidence),
		attribute.String(AttrDest, dest),
		attribute.String(AttrRule, rule),
	)
}

// SetOutcome records the executor outcome.
func (h *SpanHelper) SetOutcome(outcome string) {
	h.span.SetAttributes(attribute.String(AttrOutcome, outcome))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, code string) {
	h.span.SetStatus(codes.Error, err.Error())
	if code != "" {
		h.span.SetAttributes(attribute.String(AttrErrorCode, code))
	}
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}
