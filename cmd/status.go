package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/mailroom/config"
	"github.com/otherjamesbrown/mailroom/pkg/collection"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/route"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// StatusReport is a read-only view of one root.
type StatusReport struct {
	Root           string             `json:"root"`
	GeneratedAt    time.Time          `json:"generated_at"`
	DryRun         bool               `json:"dry_run"`
	Stages         map[string]int     `json:"stages"`
	Offices        map[string]int     `json:"offices"`
	LatestSnapshot *snapshotSummary   `json:"latest_snapshot,omitempty"`
	NextSteps      []string           `json:"next_steps,omitempty"`
	Collection     *collection.Status `json:"collection"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultCommandDeps()
	}

	var (
		serve bool
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show item counts, the latest snapshot and the collection backlog",
		Long: `Show item counts per stage and office, the latest inbox snapshot and the
COLLECTION backlog.

With --serve the same report is served read-only over HTTP:
  /status   JSON status report
  /metrics  Prometheus metrics
  /version  build information
  /healthz  liveness

Examples:
  mailroom status
  mailroom status --output json
  mailroom status --serve --addr 127.0.0.1:8765`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.loadConfig()
			if err != nil {
				return err
			}
			l, err := LayoutFor(cfg)
			if err != nil {
				return err
			}
			log := deps.logger(cfg)

			if serve {
				if addr == "" {
					addr = cfg.StatusAddr
				}
				return newStatusServer(addr, deps, l, log).Run(cmd.Context())
			}

			report, err := buildStatus(l, deps.now(), log)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), deps.outputFormat(), report, func(w io.Writer) error {
				printStatus(w, report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&serve, "serve", false, "Serve the status report over HTTP until interrupted")
	cmd.Flags().StringVar(&addr, "addr", "", fmt.Sprintf("Listen address for --serve (default from config, %s)", config.DefaultStatusAddr))

	return cmd
}

// buildStatus reads the persisted state under l. Missing directories count
// as empty.
func buildStatus(l layout.Layout, now time.Time, log logging.Logger) (*StatusReport, error) {
	r := rules.Default()

	pc, err := config.LoadProcessorConfig(l.ProcessorConfig())
	if err != nil {
		log.Warn("Processor config unusable, runs default to dry run", logging.Err(err))
	}

	report := &StatusReport{
		Root:        l.Root,
		GeneratedAt: now.UTC(),
		DryRun:      pc.DryRun,
		Stages:      make(map[string]int),
		Offices:     make(map[string]int),
	}

	dirs := map[string]string{
		"inbox":              l.Inbox(),
		"processed":          l.Processed(),
		"packages":           l.Packages(),
		rules.StageActive:    l.Stage(rules.StageActive),
		rules.StageWaiting:   l.Stage(rules.StageWaiting),
		rules.StageDone:      l.Stage(rules.StageDone),
		rules.StageReference: l.ReferenceDir,
	}
	for name, dir := range dirs {
		n, err := countEntries(dir)
		if err != nil {
			return nil, err
		}
		report.Stages[name] = n
	}
	for _, office := range r.Offices {
		n, err := countEntries(l.OfficeInbox(office))
		if err != nil {
			return nil, err
		}
		report.Offices[office] = n
	}

	store := snapshot.NewStore(l.Snapshots(layout.SourceInbox), log)
	latest, err := store.Latest()
	switch {
	case err == nil:
		report.LatestSnapshot = &snapshotSummary{
			ID:        latest.ID,
			Source:    latest.Source,
			Status:    latest.Status,
			Items:     len(latest.Items),
			CreatedAt: latest.CreatedAt,
		}
		if latest.AirOutput != nil {
			report.NextSteps = latest.AirOutput.NextSteps
		}
	case mrerrors.IsNotFound(err):
	default:
		log.Warn("Latest inbox snapshot unreadable", logging.Err(err))
	}

	report.Collection, err = collection.Monitor(l, now)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// countEntries counts the visible items in dir, sidecars excluded.
func countEntries(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || route.IsSidecar(e.Name()) {
			continue
		}
		n++
	}
	return n, nil
}

func printStatus(w io.Writer, r *StatusReport) {
	mode := "live"
	if r.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(w, "Root: %s (%s)\n\n", r.Root, mode)

	fmt.Fprintln(w, "Stages:")
	for _, name := range []string{"inbox", rules.StageActive, rules.StageWaiting, rules.StageDone, rules.StageReference, "processed", "packages"} {
		fmt.Fprintf(w, "  %-10s %d\n", name, r.Stages[name])
	}

	fmt.Fprintln(w, "\nOffices:")
	for _, office := range rules.Default().Offices {
		fmt.Fprintf(w, "  %-10s %d\n", office, r.Offices[office])
	}

	fmt.Fprintln(w)
	if s := r.LatestSnapshot; s != nil {
		fmt.Fprintf(w, "Latest snapshot: %s (%s, %d items)\n", s.ID, s.Status, s.Items)
	} else {
		fmt.Fprintln(w, "Latest snapshot: none")
	}
	if len(r.NextSteps) > 0 {
		fmt.Fprintln(w, "\nNext steps:")
		for _, step := range r.NextSteps {
			fmt.Fprintf(w, "  - %s\n", step)
		}
	}

	fmt.Fprintln(w)
	printCollectionStatus(w, r.Collection)
}
