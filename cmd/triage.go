package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/pipeline"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// triageView is the serialized result of 'mailroom triage'.
type triageView struct {
	Event    *observability.RunEvent `json:"event"`
	Snapshot string                  `json:"snapshot,omitempty"`
	Noop     bool                    `json:"noop"`
	Output   *snapshot.Output        `json:"output,omitempty"`
	Report   *reportView             `json:"report,omitempty"`
}

// NewTriageCommand creates the 'triage' command: classification and routing of ACTIVE.
func NewTriageCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultCommandDeps()
	}

	var flags runFlags

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Classify and route the files in ACTIVE",
		Long: `Classify and route the files in ACTIVE against the latest processed snapshot.

Each file is scored for urgency (content plus filename) and routed:
  Urgent, High -> ACTIVE  (escalate / process)
  Medium       -> WAITING (review)
  Low          -> DONE    (archive)

A filename override in routing_config.json or a .navi.json sidecar beats the
priority. Files whose destination is not ACTIVE are moved with their sidecar.

A live run attaches the decisions to the snapshot, marks it air_processed and
writes <root>/air_output.json. A dry run persists nothing.

Examples:
  # Preview decisions
  mailroom triage --dry-run

  # Apply and emit the decision record as JSON
  mailroom triage --live --output json`,
		Aliases: []string{"air"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps.pipelineDeps(&flags)
			if err != nil {
				return err
			}

			res, err := pipeline.NewTriage(d).Run(cmd.Context())
			if err != nil {
				return err
			}

			view := triageView{Event: res.Event, Noop: res.Noop, Output: res.Output, Report: newReportView(res.Report)}
			if res.Snapshot != nil {
				view.Snapshot = res.Snapshot.ID
			}
			return render(cmd.OutOrStdout(), deps.outputFormat(), view, func(w io.Writer) error {
				if res.Noop {
					fmt.Fprintln(w, "Nothing to do: no processed inbox snapshot.")
					return nil
				}
				fmt.Fprintf(w, "Snapshot %s\n\n", view.Snapshot)
				printDecisions(w, res.Output)
				fmt.Fprintln(w)
				printReport(w, res.Report)
				dryRunBanner(w, d.DryRun)
				return nil
			})
		},
	}

	addRunFlags(cmd, &flags)

	return cmd
}

func printDecisions(w io.Writer, out *snapshot.Output) {
	if out == nil {
		return
	}
	fmt.Fprintln(w, out.Summary)
	if len(out.Items) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tPRIORITY\tCONFIDENCE\tDESTINATION\tACTION")
		fmt.Fprintln(tw, "----\t--------\t----------\t-----------\t------")
		for _, dcs := range out.Items {
			fmt.Fprintf(tw, "%s\t%s\t%d (%s)\t%s\t%s\n",
				dcs.File, dcs.Priority, dcs.Confidence, dcs.ConfidenceLabel, dcs.Destination, dcs.Action)
		}
		tw.Flush()
	}
	if len(out.NextSteps) > 0 {
		fmt.Fprintln(w, "\nNext steps:")
		for _, step := range out.NextSteps {
			fmt.Fprintf(w, "  - %s\n", step)
		}
	}
}
