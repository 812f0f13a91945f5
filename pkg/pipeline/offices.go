package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/otherjamesbrown/mailroom/pkg/executor"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/route"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// Offices distributes processed files and packages to the office inboxes.
type Offices struct {
	deps   Deps
	router *route.Router
}

// NewOffices creates the office distribution passes.
func NewOffices(d Deps) *Offices {
	d = d.withDefaults()
	return &Offices{deps: d, router: route.NewOfficeRouter(d.Rules, d.Routing)}
}

// RouteDetail records how one file was routed.
type RouteDetail struct {
	File   string `json:"file"`
	Office string `json:"office"`
	Rule   string `json:"rule"`
	Detail string `json:"detail,omitempty"`
	Result string `json:"result"`
	Dest   string `json:"dest,omitempty"`
}

// RouteResult describes one office routing run.
type RouteResult struct {
	Event    *observability.RunEvent `json:"event"`
	Routed   []string                `json:"routed"`
	ByOffice map[string][]string     `json:"by_office"`
	Details  []RouteDetail           `json:"details"`
	Report   *executor.Report        `json:"-"`
}

// RoutingMeta is written next to every routed file as <file>.meta.json.
type RoutingMeta struct {
	Filename   string    `json:"filename"`
	RoutedFrom string    `json:"routed_from"`
	RoutedTo   string    `json:"routed_to"`
	Office     string    `json:"office"`
	Rule       string    `json:"rule"`
	RunID      string    `json:"run_id"`
	AppliedAt  time.Time `json:"applied_at"`
}

// RouteProcessed moves every file under processed/ (recursively, sidecar
// and meta files excluded) into its office inbox. The sidecar travels with
// the file and a routing meta record is written beside it.
func (o *Offices) RouteProcessed(ctx context.Context) (*RouteResult, error) {
	r := o.deps.begin(ctx, observability.PipelineOffices)
	res := &RouteResult{Event: r.event, ByOffice: make(map[string][]string)}

	root := o.deps.Layout.Processed()
	paths, err := listTree(root)
	if err != nil {
		return res, r.finish(nil, err)
	}

	moves := make([]executor.Move, 0, len(paths))
	resolutions := make([]route.Resolution, 0, len(paths))
	for _, p := range paths {
		name := filepath.Base(p)
		sidecar := route.SidecarPath(p)
		resolved := o.router.Resolve(route.Request{Filename: name, Sidecar: route.LoadSidecar(sidecar)})
		resolutions = append(resolutions, resolved)
		moves = append(moves, executor.Move{
			Name:          name,
			Source:        p,
			DestDir:       o.deps.Layout.OfficeInbox(resolved.Destination),
			Category:      executor.CategoryMoved,
			Sidecar:       sidecar,
			SidecarSuffix: route.SidecarSuffix,
		})
	}

	report, err := o.deps.executor(observability.PipelineOffices).ApplyAll(r.ctx, moves)
	res.Report = report
	if err != nil {
		return res, r.finish(report, err)
	}

	for i, out := range report.Outcomes {
		resolved := resolutions[i]
		res.Details = append(res.Details, RouteDetail{
			File:   out.Move.Name,
			Office: resolved.Destination,
			Rule:   string(resolved.Rule),
			Detail: resolved.Detail,
			Result: string(out.Result),
			Dest:   out.Dest,
		})
		if out.Result != executor.ResultMoved && out.Result != executor.ResultPlanned {
			continue
		}
		res.Routed = append(res.Routed, out.Move.Name)
		res.ByOffice[resolved.Destination] = append(res.ByOffice[resolved.Destination], out.Move.Name)

		if out.Result == executor.ResultMoved {
			o.writeMeta(r, out, resolved)
		}
	}
	return res, r.finish(report, nil)
}

func (o *Offices) writeMeta(r *run, out executor.Outcome, resolved route.Resolution) {
	rel := func(p string) string {
		if s, err := filepath.Rel(o.deps.Layout.Root, p); err == nil {
			return filepath.ToSlash(s)
		}
		return p
	}
	meta := RoutingMeta{
		Filename:   filepath.Base(out.Dest),
		RoutedFrom: rel(filepath.Dir(out.Move.Source)),
		RoutedTo:   rel(out.Move.DestDir),
		Office:     resolved.Destination,
		Rule:       string(resolved.Rule),
		RunID:      r.event.RunID,
		AppliedAt:  o.deps.Now().UTC(),
	}
	if err := snapshot.WriteJSON(out.Dest+route.MetaSuffix, meta); err != nil {
		r.log.Warn("failed to write routing meta", logging.F("file", out.Move.Name), logging.Err(err))
	}
}

// DeliverResult describes one package delivery run.
type DeliverResult struct {
	Event     *observability.RunEvent `json:"event"`
	Delivered []string                `json:"delivered"`
	Planned   []string                `json:"planned,omitempty"`
	Report    *executor.Report        `json:"-"`
}

// DeliverPackages copies each packages/<name>/ directory into the inbox of
// the office named by the prefix before the first underscore, or the
// default office. Already-delivered packages count as delivered, so the
// run is idempotent.
func (o *Offices) DeliverPackages(ctx context.Context) (*DeliverResult, error) {
	r := o.deps.begin(ctx, observability.PipelineDeliver)
	res := &DeliverResult{Event: r.event}

	entries, err := os.ReadDir(o.deps.Layout.Packages())
	if err != nil && !os.IsNotExist(err) {
		return res, r.finish(nil, err)
	}

	var moves []executor.Move
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		moves = append(moves, executor.Move{
			Name:     e.Name(),
			Source:   filepath.Join(o.deps.Layout.Packages(), e.Name()),
			DestDir:  o.deps.Layout.OfficeInbox(o.PackageOffice(e.Name())),
			Category: executor.CategoryDelivered,
			Mode:     executor.ModeCopy,
		})
	}

	report, err := o.deps.executor(observability.PipelineDeliver).ApplyAll(r.ctx, moves)
	res.Report = report
	if err != nil {
		return res, r.finish(report, err)
	}
	for _, out := range report.Outcomes {
		switch out.Result {
		case executor.ResultDelivered:
			res.Delivered = append(res.Delivered, out.Move.Name)
		case executor.ResultPlanned:
			res.Planned = append(res.Planned, out.Move.Name)
		}
	}
	return res, r.finish(report, nil)
}

// PackageOffice returns the office for a package directory name.
func (o *Offices) PackageOffice(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	if office, ok := rules.Canonical(o.deps.Rules.Offices, prefix); ok {
		return office
	}
	return o.deps.Rules.DefaultOffice
}

// listTree returns the regular files under root in lexical walk order,
// skipping sidecar and meta files. A missing root is empty.
func listTree(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && !route.IsSidecar(d.Name()) {
			paths = append(paths, p)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	sort.Strings(paths)
	return paths, err
}
