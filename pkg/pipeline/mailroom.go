package pipeline

import (
	"context"
	"path/filepath"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/executor"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/route"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// Mailroom is the intake pass: it sorts the files captured by the latest
// inbox snapshot into ACTIVE, REFERENCE or an ARCHIVE bucket.
type Mailroom struct {
	deps   Deps
	router *route.Router
}

// NewMailroom creates the intake pass.
func NewMailroom(d Deps) *Mailroom {
	d = d.withDefaults()
	return &Mailroom{deps: d, router: route.NewStageRouter(d.Rules, d.Routing)}
}

// MailroomResult describes one intake run.
type MailroomResult struct {
	Event    *observability.RunEvent `json:"event"`
	Snapshot *snapshot.Snapshot      `json:"snapshot,omitempty"`
	Report   *executor.Report        `json:"-"`
	Noop     bool                    `json:"noop"`
}

// Run processes the latest inbox snapshot if it is unprocessed. Any other
// state is a no-op. In live mode the snapshot advances to processed once
// every item was attempted; a dry run leaves it unprocessed so the same
// run can be replayed live.
func (m *Mailroom) Run(ctx context.Context) (*MailroomResult, error) {
	r := m.deps.begin(ctx, observability.PipelineMailroom)
	res := &MailroomResult{Event: r.event}

	snap, err := m.deps.inboxStore().Latest()
	if mrerrors.IsNotFound(err) {
		r.skip("no inbox snapshot to process")
		res.Noop = true
		return res, r.finish(nil, nil)
	}
	if err != nil {
		return res, r.finish(nil, err)
	}
	r.setSnapshot(snap.ID)
	res.Snapshot = snap

	if snap.Status != snapshot.StatusUnprocessed {
		r.skip("latest inbox snapshot is not unprocessed")
		res.Noop = true
		return res, r.finish(nil, nil)
	}

	moves := m.plan(snap)
	report, err := m.deps.executor(observability.PipelineMailroom).ApplyAll(r.ctx, moves)
	res.Report = report
	if err != nil {
		return res, r.finish(report, err)
	}

	if m.deps.DryRun {
		r.log.Info("[DRY-RUN] would mark snapshot processed")
		return res, r.finish(report, nil)
	}

	if err := snap.Advance(snapshot.StatusProcessed, m.deps.Now()); err != nil {
		return res, r.finish(report, err)
	}
	if err := m.deps.inboxStore().Save(snap); err != nil {
		return res, r.finish(report, err)
	}
	r.log.Info("snapshot processed",
		logging.F("moved", report.Count(executor.ResultMoved)),
		logging.F("archived", report.Count(executor.ResultArchived)),
		logging.F("rejected", report.Count(executor.ResultRejected)))
	return res, r.finish(report, nil)
}

// plan builds one intake move per snapshot item, in snapshot order.
func (m *Mailroom) plan(snap *snapshot.Snapshot) []executor.Move {
	l := m.deps.Layout
	moves := make([]executor.Move, 0, len(snap.Items))
	for _, it := range snap.Items {
		in := m.router.Intake(it.Name)

		destDir := l.Stage(in.Stage)
		if in.Stage == rules.StageArchive {
			destDir = l.ArchiveBucket(in.Bucket)
		}
		moves = append(moves, executor.Move{
			Name:     it.Name,
			Source:   filepath.Join(l.Inbox(), it.Name),
			DestDir:  destDir,
			Category: in.Category,
		})
	}
	return moves
}
