// Package pipeline wires the rule tables, classifier, router and move
// executor into the runs the CLI exposes: inbox snapshot creation, the
// mailroom intake pass, the triage pass, office routing and package
// delivery.
//
// Every run processes items sequentially and in a deterministic order.
// Only a filesystem invariant violation (or context cancellation) stops a
// run early; that error is returned unwrapped so main can map it to its
// exit code.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/otherjamesbrown/mailroom/config"
	"github.com/otherjamesbrown/mailroom/pkg/classify"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/executor"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// Deps holds the immutable inputs shared by every pipeline.
type Deps struct {
	Layout  layout.Layout
	Rules   *rules.Rules
	Routing config.RoutingConfig
	DryRun  bool

	// MaxContentBytes caps classifier reads; zero uses the classifier default.
	MaxContentBytes int64

	Logger  logging.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Rules == nil {
		d.Rules = rules.Default()
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Tracer == nil {
		d.Tracer = observability.NewTracer()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func (d Deps) executor(pipeline string) *executor.Executor {
	return executor.New(
		executor.WithDryRun(d.DryRun),
		executor.WithLogger(d.Logger),
		executor.WithMetrics(d.Metrics),
		executor.WithPipeline(pipeline),
	)
}

func (d Deps) classifier() *classify.Classifier {
	return classify.New(d.Rules,
		classify.WithMaxContentBytes(d.MaxContentBytes),
		classify.WithLogger(d.Logger))
}

func (d Deps) inboxStore() *snapshot.Store {
	return snapshot.NewStore(d.Layout.Snapshots(layout.SourceInbox), d.Logger)
}

// run tracks one pipeline invocation.
type run struct {
	ctx   context.Context
	span  trace.Span
	event *observability.RunEvent
	start time.Time
	log   logging.Logger
	deps  Deps
	noop  bool
}

func (d Deps) begin(ctx context.Context, pipeline string) *run {
	runID := logging.RunIDFrom(ctx)
	if runID == "" {
		runID = observability.NewRunID()
		ctx = logging.WithRunID(ctx, runID)
	}
	ctx, span := d.Tracer.StartRunSpan(ctx, pipeline, runID, d.DryRun)
	r := &run{
		ctx:   ctx,
		span:  span,
		event: observability.NewRunEvent(runID, pipeline, d.DryRun),
		start: time.Now(),
		log:   d.Logger.WithContext(ctx).With(logging.F("pipeline", pipeline)),
		deps:  d,
	}
	r.log.Info("run started", logging.F("dry_run", d.DryRun))
	return r
}

// setSnapshot attaches the snapshot id to the span and event.
func (r *run) setSnapshot(id string) {
	r.event.SnapshotID = id
	observability.NewSpanHelper(r.span).SetSnapshot(id)
	r.log = r.log.With(logging.F("snapshot_id", id))
}

// skip marks the run as having nothing to do.
func (r *run) skip(reason string) {
	r.noop = true
	r.log.Warn(reason)
}

// finish closes the span, records metrics and returns err unchanged.
func (r *run) finish(report *executor.Report, err error) error {
	defer r.span.End()

	status := observability.RunStatusCompleted
	helper := observability.NewSpanHelper(r.span)
	switch {
	case err == nil && r.noop:
		status = observability.RunStatusNoop
		helper.SetSuccess()
	case err == nil:
		helper.SetSuccess()
	case mrerrors.IsNothingToDo(err), mrerrors.IsNotFound(err):
		status = observability.RunStatusNoop
	case mrerrors.IsInvariant(err):
		status = observability.RunStatusAborted
		helper.SetError(err, "invariant")
	case errors.Is(err, context.Canceled):
		status = observability.RunStatusAborted
		helper.SetError(err, "")
	default:
		status = observability.RunStatusFailed
		helper.SetError(err, "")
	}

	if report != nil {
		r.event.Counts = report.Counts()
	}
	r.event.Finish(status, r.start, err)
	r.deps.Metrics.RecordRun(r.event.Pipeline, status, float64(r.event.DurationMs)/1000)

	fields := []logging.Field{logging.F("status", status), logging.F("duration_ms", r.event.DurationMs)}
	if report != nil {
		fields = append(fields, logging.F("summary", report.Summary()))
	}
	if err != nil && status != observability.RunStatusNoop {
		r.log.Error("run ended", append(fields, logging.Err(err))...)
	} else {
		r.log.Info("run ended", fields...)
	}
	return err
}
