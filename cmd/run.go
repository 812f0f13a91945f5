package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/pipeline"
)

// runView is the serialized result of 'mailroom run'.
type runView struct {
	Event    *observability.RunEvent `json:"event"`
	Snapshot string                  `json:"snapshot,omitempty"`
	Status   string                  `json:"snapshot_status,omitempty"`
	Noop     bool                    `json:"noop"`
	Report   *reportView             `json:"report,omitempty"`
}

// NewRunCommand creates the 'run' command: the mailroom intake pass.
func NewRunCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultCommandDeps()
	}

	var (
		flags          runFlags
		createSnapshot bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the mailroom intake pass on the latest inbox snapshot",
		Long: `Run the mailroom intake pass on the latest inbox snapshot.

Each item of the newest unprocessed inbox snapshot is moved out of the inbox:
  - non-actionable files (.log, .tmp, .bak, .zip, ...) go to an ARCHIVE bucket
  - documents (.pdf, .docx, .txt, ...) go to ACTIVE
  - everything else goes to REFERENCE

Before anything moves, every destination directory is checked. If any path
is blocked by a file the run aborts with exit code 2 and moves nothing.

Runs are dry by default (processor_config.json "dry_run"). A dry run leaves
the snapshot unprocessed so it can be replayed live.

Examples:
  # Plan the intake moves
  mailroom run --dry-run

  # Snapshot the inbox and apply
  mailroom run --snapshot --live

  # Machine-readable report
  mailroom run --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps.pipelineDeps(&flags)
			if err != nil {
				return err
			}

			if createSnapshot {
				snap, err := pipeline.CreateInboxSnapshot(cmd.Context(), d)
				switch {
				case mrerrors.IsNothingToDo(err):
					d.Logger.Info("Inbox is empty, no snapshot created")
				case err != nil:
					return err
				default:
					d.Logger.Info("Created inbox snapshot", logging.F("snapshot_id", snap.ID))
				}
			}

			res, err := pipeline.NewMailroom(d).Run(cmd.Context())
			if err != nil {
				return err
			}

			view := runView{Event: res.Event, Noop: res.Noop, Report: newReportView(res.Report)}
			if res.Snapshot != nil {
				view.Snapshot = res.Snapshot.ID
				view.Status = string(res.Snapshot.Status)
			}
			return render(cmd.OutOrStdout(), deps.outputFormat(), view, func(w io.Writer) error {
				if res.Noop {
					fmt.Fprintln(w, "Nothing to do: no unprocessed inbox snapshot.")
					return nil
				}
				fmt.Fprintf(w, "Snapshot %s -> %s\n\n", view.Snapshot, view.Status)
				printReport(w, res.Report)
				dryRunBanner(w, d.DryRun)
				return nil
			})
		},
	}

	addRunFlags(cmd, &flags)
	cmd.Flags().BoolVar(&createSnapshot, "snapshot", false, "Snapshot the inbox before running")

	return cmd
}
