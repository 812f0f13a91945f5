package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/pipeline"
)

// NewOfficesCommand creates the offices command with route and deliver subcommands.
func NewOfficesCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultCommandDeps()
	}

	cmd := &cobra.Command{
		Use:   "offices",
		Short: "Distribute processed files and packages to office inboxes",
		Long: `Distribute processed files and packages to office inboxes.

Offices: CEO, CFO, CLO, CMO, COO, CSO, CTO, CIO, EXEC.
Unmatched items go to the default office (EXEC).

Routing precedence for processed files:
  1. filename_overrides in config/routing_config.json (longest prefix wins)
  2. the .navi.json sidecar (route, routed_to, function)
  3. the default office

Examples:
  # Route everything under processed/
  mailroom offices route --live

  # Deliver packages (copies, idempotent)
  mailroom offices deliver --live`,
		Aliases: []string{"office"},
	}

	cmd.AddCommand(newOfficesRouteCommand(deps))
	cmd.AddCommand(newOfficesDeliverCommand(deps))

	return cmd
}

// routeView is the serialized result of 'offices route'.
type routeView struct {
	Event    *observability.RunEvent `json:"event"`
	Routed   []string                `json:"routed"`
	ByOffice map[string][]string     `json:"by_office"`
	Details  []pipeline.RouteDetail  `json:"details"`
	Report   *reportView             `json:"report,omitempty"`
}

// newOfficesRouteCommand creates the 'offices route' subcommand.
func newOfficesRouteCommand(deps *CommandDeps) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Move processed files into office inboxes",
		Long: `Move every file under processed/ into offices/<OFFICE>/inbox.

The sidecar travels with the file and a <file>.meta.json routing record is
written next to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps.pipelineDeps(&flags)
			if err != nil {
				return err
			}
			res, err := pipeline.NewOffices(d).RouteProcessed(cmd.Context())
			if err != nil {
				return err
			}

			view := routeView{
				Event:    res.Event,
				Routed:   res.Routed,
				ByOffice: res.ByOffice,
				Details:  res.Details,
				Report:   newReportView(res.Report),
			}
			return render(cmd.OutOrStdout(), deps.outputFormat(), view, func(w io.Writer) error {
				if len(res.Details) == 0 {
					fmt.Fprintln(w, "Nothing to route.")
					return nil
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "FILE\tOFFICE\tRULE\tRESULT")
				fmt.Fprintln(tw, "----\t------\t----\t------")
				for _, dt := range res.Details {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", dt.File, dt.Office, dt.Rule, dt.Result)
				}
				tw.Flush()
				printOfficeCounts(w, res.ByOffice)
				dryRunBanner(w, d.DryRun)
				return nil
			})
		},
	}

	addRunFlags(cmd, &flags)
	return cmd
}

// deliverView is the serialized result of 'offices deliver'.
type deliverView struct {
	Event     *observability.RunEvent `json:"event"`
	Delivered []string                `json:"delivered"`
	Planned   []string                `json:"planned,omitempty"`
	Report    *reportView             `json:"report,omitempty"`
}

// newOfficesDeliverCommand creates the 'offices deliver' subcommand.
func newOfficesDeliverCommand(deps *CommandDeps) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Copy packages into office inboxes",
		Long: `Copy each packages/<name>/ directory into an office inbox.

The office is the part of the name before the first underscore (cfo_q3_close
goes to CFO); anything else goes to the default office. Packages already
present in the office inbox count as delivered, so re-running is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps.pipelineDeps(&flags)
			if err != nil {
				return err
			}
			res, err := pipeline.NewOffices(d).DeliverPackages(cmd.Context())
			if err != nil {
				return err
			}

			view := deliverView{
				Event:     res.Event,
				Delivered: res.Delivered,
				Planned:   res.Planned,
				Report:    newReportView(res.Report),
			}
			if view.Delivered == nil {
				view.Delivered = []string{}
			}
			return render(cmd.OutOrStdout(), deps.outputFormat(), view, func(w io.Writer) error {
				printReport(w, res.Report)
				dryRunBanner(w, d.DryRun)
				return nil
			})
		},
	}

	addRunFlags(cmd, &flags)
	return cmd
}

func printOfficeCounts(w io.Writer, byOffice map[string][]string) {
	if len(byOffice) == 0 {
		return
	}
	offices := make([]string, 0, len(byOffice))
	for o := range byOffice {
		offices = append(offices, o)
	}
	sort.Strings(offices)
	parts := make([]string, 0, len(offices))
	for _, o := range offices {
		parts = append(parts, fmt.Sprintf("%s=%d", o, len(byOffice[o])))
	}
	fmt.Fprintf(w, "\nBy office: %s\n", strings.Join(parts, " "))
}
