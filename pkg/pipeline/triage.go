package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/otherjamesbrown/mailroom/pkg/collection"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/executor"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/route"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// Triage is the classification pass over ACTIVE.
type Triage struct {
	deps   Deps
	router *route.Router
}

// NewTriage creates the triage pass.
func NewTriage(d Deps) *Triage {
	d = d.withDefaults()
	return &Triage{deps: d, router: route.NewStageRouter(d.Rules, d.Routing)}
}

// TriageResult describes one triage run.
type TriageResult struct {
	Event    *observability.RunEvent `json:"event"`
	Snapshot *snapshot.Snapshot      `json:"snapshot,omitempty"`
	Output   *snapshot.Output        `json:"output,omitempty"`
	Report   *executor.Report        `json:"-"`
	Noop     bool                    `json:"noop"`
}

// Run classifies and routes every file in ACTIVE against the latest
// processed inbox snapshot. Items whose destination is not ACTIVE are moved
// with their sidecars. In live mode the decision output is attached to the
// snapshot, the snapshot advances to air_processed and the output file is
// written; a dry run persists nothing.
func (t *Triage) Run(ctx context.Context) (*TriageResult, error) {
	r := t.deps.begin(ctx, observability.PipelineTriage)
	res := &TriageResult{Event: r.event}

	store := t.deps.inboxStore()
	snap, err := store.LatestWithStatus(snapshot.StatusProcessed)
	if mrerrors.IsNotFound(err) {
		r.skip("no processed inbox snapshot to triage")
		res.Noop = true
		return res, r.finish(nil, nil)
	}
	if err != nil {
		return res, r.finish(nil, err)
	}
	r.setSnapshot(snap.ID)
	res.Snapshot = snap

	files, err := t.listActive()
	if err != nil {
		return res, r.finish(nil, err)
	}

	decisions, moves := t.decide(r, files)
	report, err := t.deps.executor(observability.PipelineTriage).ApplyAll(r.ctx, moves)
	res.Report = report
	if err != nil {
		return res, r.finish(report, err)
	}

	out := snapshot.NewOutput(decisions, t.nextSteps(r, decisions), t.deps.Now())
	res.Output = &out

	if t.deps.DryRun {
		r.log.Info("[DRY-RUN] would record decisions and mark snapshot air_processed",
			logging.F("decisions", len(decisions)))
		return res, r.finish(report, nil)
	}

	attachDecisions(snap, decisions)
	snap.AirOutput = &out
	if err := snap.Advance(snapshot.StatusAirProcessed, t.deps.Now()); err != nil {
		return res, r.finish(report, err)
	}
	if err := store.Save(snap); err != nil {
		return res, r.finish(report, err)
	}
	if err := snapshot.WriteOutput(t.deps.Layout.DecisionOutput(), out); err != nil {
		return res, r.finish(report, err)
	}
	return res, r.finish(report, nil)
}

// listActive returns the item files in ACTIVE, sorted, sidecars excluded.
func (t *Triage) listActive() ([]string, error) {
	dir := t.deps.Layout.Stage(rules.StageActive)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || route.IsSidecar(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (t *Triage) decide(r *run, names []string) ([]snapshot.Decision, []executor.Move) {
	dir := t.deps.Layout.Stage(rules.StageActive)
	classifier := t.deps.classifier()

	decisions := make([]snapshot.Decision, 0, len(names))
	var moves []executor.Move
	for _, name := range names {
		_, span := t.deps.Tracer.StartItemSpan(r.ctx, name)

		path := filepath.Join(dir, name)
		cls := classifier.ClassifyFile(path)
		sidecarPath := route.SidecarPath(path)
		resolved := t.router.Resolve(route.Request{
			Filename: name,
			Priority: cls.Priority,
			Sidecar:  route.LoadSidecar(sidecarPath),
		})

		d := snapshot.Decision{
			File:            name,
			Priority:        cls.Priority,
			Destination:     resolved.Destination,
			Action:          resolved.Action,
			Confidence:      cls.Confidence,
			ConfidenceLabel: cls.Label,
			Signals:         cls.Signals,
			Reason:          cls.Reason,
		}
		decisions = append(decisions, d)
		t.deps.Metrics.RecordClassification(string(cls.Priority), cls.Label, cls.Confidence)

		helper := observability.NewSpanHelper(span)
		helper.SetDecision(string(d.Priority), d.Confidence, d.Destination, string(resolved.Rule))
		if cls.ContentError != nil {
			helper.SetError(cls.ContentError, string(cls.ContentError.Code))
		}
		span.End()

		r.log.Debug("classified",
			logging.F("file", name),
			logging.F("priority", string(d.Priority)),
			logging.F("confidence", d.Confidence),
			logging.F("destination", d.Destination),
			logging.F("rule", string(resolved.Rule)))

		if d.Destination == rules.StageActive {
			continue
		}
		moves = append(moves, executor.Move{
			Name:          name,
			Source:        path,
			DestDir:       t.deps.Layout.Stage(d.Destination),
			Category:      executor.CategoryMoved,
			Sidecar:       sidecarPath,
			SidecarSuffix: route.SidecarSuffix,
		})
	}
	return decisions, moves
}

// nextSteps builds the advisory follow-ups: collection status first, then
// lines driven by the decisions.
func (t *Triage) nextSteps(r *run, decisions []snapshot.Decision) []string {
	var steps []string
	st, err := collection.Monitor(t.deps.Layout, t.deps.Now())
	if err != nil {
		r.log.Warn("collection status unavailable", logging.Err(err))
	} else {
		st.Record(t.deps.Metrics)
		steps = append(steps, st.NextSteps()...)
	}

	var urgent, waiting bool
	for _, d := range decisions {
		if d.Priority == rules.PriorityUrgent {
			urgent = true
		}
		if d.Destination == rules.StageWaiting {
			waiting = true
		}
	}
	if urgent {
		steps = append(steps, "Notify executive team of urgent items", "Escalate critical requests immediately")
	}
	if waiting {
		steps = append(steps, "Schedule review meeting for waiting items", "Await policy clarification if needed")
	}
	return append(steps, "Monitor ACTIVE directory for new arrivals", "Archive completed items to DONE")
}

// attachDecisions copies each decision onto the snapshot item of the same name.
func attachDecisions(snap *snapshot.Snapshot, decisions []snapshot.Decision) {
	byName := make(map[string]snapshot.Decision, len(decisions))
	for _, d := range decisions {
		byName[d.File] = d
	}
	for i := range snap.Items {
		if d, ok := byName[snap.Items[i].Name]; ok {
			d := d
			snap.Items[i].Decision = &d
		}
	}
}
