package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/mailroom/pkg/collection"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/executor"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// NewCollectCommand creates the collect command for bulk COLLECTION intake.
func NewCollectCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultCommandDeps()
	}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Batch bulk imports dropped into COLLECTION/INCOMING",
		Long: `Batch bulk imports dropped into COLLECTION/INCOMING.

COLLECTION is separate from the inbox flow: a scan moves everything in
INCOMING into COLLECTION/BATCHES/<date>_<source>_<n>/ and records an
unreviewed snapshot with batch metadata (size, file types, risk flags).
Nothing in a batch is classified or routed until a reviewer decides.

Examples:
  # Preview the next batch
  mailroom collect scan --dry-run

  # Create the batch
  mailroom collect scan --live --source scanner

  # Backlog and risk overview
  mailroom collect status`,
		Aliases: []string{"collection"},
	}

	cmd.AddCommand(newCollectScanCommand(deps))
	cmd.AddCommand(newCollectStatusCommand(deps))

	return cmd
}

// scanView is the serialized result of 'collect scan'.
type scanView struct {
	BatchID  string             `json:"batch_id"`
	BatchDir string             `json:"batch_dir"`
	DryRun   bool               `json:"dry_run"`
	Snapshot *snapshot.Snapshot `json:"snapshot"`
	Report   *reportView        `json:"report,omitempty"`
}

// newCollectScanCommand creates the 'collect scan' subcommand.
func newCollectScanCommand(deps *CommandDeps) *cobra.Command {
	var (
		flags  runFlags
		source string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Move COLLECTION/INCOMING into a new batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps.pipelineDeps(&flags)
			if err != nil {
				return err
			}

			exec := executor.New(
				executor.WithDryRun(d.DryRun),
				executor.WithLogger(d.Logger),
				executor.WithMetrics(d.Metrics),
				executor.WithPipeline(observability.PipelineCollect),
			)
			opts := []collection.ScannerOption{
				collection.WithExecutor(exec),
				collection.WithLogger(d.Logger),
				collection.WithMetrics(d.Metrics),
			}
			if source != "" {
				opts = append(opts, collection.WithSource(source))
			}
			if d.Now != nil {
				opts = append(opts, collection.WithClock(d.Now))
			}

			res, err := collection.NewScanner(d.Layout, d.Rules, opts...).Scan(cmd.Context())
			if mrerrors.IsNothingToDo(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "COLLECTION/INCOMING is empty, no batch created.")
				return nil
			}
			if err != nil {
				return err
			}

			view := scanView{
				BatchID:  res.BatchID,
				BatchDir: res.BatchDir,
				DryRun:   res.DryRun,
				Snapshot: res.Snapshot,
				Report:   newReportView(res.Report),
			}
			return render(cmd.OutOrStdout(), deps.outputFormat(), view, func(w io.Writer) error {
				printBatch(w, res)
				dryRunBanner(w, res.DryRun)
				return nil
			})
		},
	}

	addRunFlags(cmd, &flags)
	cmd.Flags().StringVar(&source, "source", "", "Batch source label (default \"bulk_import\")")
	return cmd
}

// collectStatusView is the serialized result of 'collect status'.
type collectStatusView struct {
	*collection.Status
	NextSteps []string `json:"next_steps"`
}

// newCollectStatusCommand creates the 'collect status' subcommand.
func newCollectStatusCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the COLLECTION backlog and risks",
		Long: `Show the COLLECTION backlog and risks.

Risks flagged:
  - files waiting in INCOMING
  - a batch older than 7 days
  - a backlog above 50 items
  - a backlog above 10 items while ACTIVE is empty`,
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
			st, err := collection.Monitor(l, deps.now())
			if err != nil {
				return err
			}
			st.Record(deps.metrics())

			view := collectStatusView{Status: st, NextSteps: st.NextSteps()}
			return render(cmd.OutOrStdout(), deps.outputFormat(), view, func(w io.Writer) error {
				printCollectionStatus(w, st)
				return nil
			})
		},
	}
}

func printBatch(w io.Writer, res *collection.ScanResult) {
	snap := res.Snapshot
	fmt.Fprintf(w, "Batch %s\n", res.BatchID)
	fmt.Fprintf(w, "  Directory: %s\n", res.BatchDir)
	if snap.CollectionMeta != nil {
		m := snap.CollectionMeta
		fmt.Fprintf(w, "  Files:     %d (%.2f MB)\n", m.FileCount, m.TotalSizeMB)

		types := make([]string, 0, len(m.FileTypes))
		for t := range m.FileTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "    %-8s %d\n", t, m.FileTypes[t])
		}
		if len(m.AirNotes) > 0 {
			fmt.Fprintln(w, "  Notes:")
			for _, n := range m.AirNotes {
				fmt.Fprintf(w, "    - %s\n", n)
			}
		}
	}
	if failed := res.Report.Failed(); len(failed) > 0 {
		fmt.Fprintf(w, "  Failed:    %d\n", len(failed))
		for _, o := range failed {
			fmt.Fprintf(w, "    - %s\n", o)
		}
	}
}

func printCollectionStatus(w io.Writer, st *collection.Status) {
	fmt.Fprintln(w, "COLLECTION status:")
	fmt.Fprintf(w, "  Incoming:       %d\n", st.IncomingCount)
	fmt.Fprintf(w, "  Batches:        %d\n", st.BatchCount)
	fmt.Fprintf(w, "  Review:         %d\n", st.ReviewCount)
	fmt.Fprintf(w, "  Hold:           %d\n", st.HoldCount)
	fmt.Fprintf(w, "  Trash:          %d\n", st.TrashCount)
	fmt.Fprintf(w, "  Total backlog:  %d\n", st.TotalBacklog)
	if st.OldestBatch != "" {
		fmt.Fprintf(w, "  Oldest batch:   %s (%d days)\n", st.OldestBatch, st.OldestBatchDays)
	}
	fmt.Fprintln(w, "\nNext steps:")
	for _, s := range st.NextSteps() {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}
