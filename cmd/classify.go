package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/mailroom/pkg/classify"
	"github.com/otherjamesbrown/mailroom/pkg/route"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

// classifyView is the classification and routing of one file.
type classifyView struct {
	File            string         `json:"file"`
	Priority        rules.Priority `json:"priority"`
	Confidence      int            `json:"confidence"`
	ConfidenceLabel string         `json:"confidence_label"`
	Signals         []string       `json:"signals"`
	Keywords        []string       `json:"keywords"`
	Reason          string         `json:"reason"`
	Destination     string         `json:"destination"`
	Action          string         `json:"action"`
	Rule            string         `json:"rule"`
	Error           string         `json:"error,omitempty"`
}

// NewClassifyCommand creates the classify command. It scores and routes
// files without moving anything.
func NewClassifyCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultCommandDeps()
	}

	cmd := &cobra.Command{
		Use:   "classify <file>...",
		Short: "Show how files would be classified and routed",
		Long: `Show how files would be classified and routed. Nothing is moved.

The priority is the highest keyword tier found in the file content:
  Urgent  critical, emergency, immediate, urgent, ceo, executive
  High    important, priority, deadline, review
  Medium  check, verify, follow up, meeting

Confidence adds weights for an actionable extension, each matched tier,
keyword density and a descriptive filename, capped at 100.

Examples:
  # One file
  mailroom classify ~/NAVI/ACTIVE/board-update.docx

  # Everything in ACTIVE, as JSON
  mailroom classify ~/NAVI/ACTIVE/* --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps.pipelineDeps(nil)
			if err != nil {
				return err
			}
			classifier := classify.New(d.Rules,
				classify.WithMaxContentBytes(d.MaxContentBytes),
				classify.WithLogger(d.Logger))
			router := route.NewStageRouter(d.Rules, d.Routing)

			views := make([]classifyView, 0, len(args))
			for _, path := range args {
				if route.IsSidecar(filepath.Base(path)) {
					continue
				}
				views = append(views, classifyPath(classifier, router, path))
			}

			return render(cmd.OutOrStdout(), deps.outputFormat(), views, func(w io.Writer) error {
				for i, v := range views {
					if i > 0 {
						fmt.Fprintln(w)
					}
					printClassification(w, v)
				}
				return nil
			})
		},
	}

	return cmd
}

func classifyPath(c *classify.Classifier, rt *route.Router, path string) classifyView {
	name := filepath.Base(path)
	res := c.ClassifyFile(path)
	resolved := rt.Resolve(route.Request{
		Filename: name,
		Priority: res.Priority,
		Sidecar:  route.LoadSidecar(route.SidecarPath(path)),
	})

	v := classifyView{
		File:            name,
		Priority:        res.Priority,
		Confidence:      res.Confidence,
		ConfidenceLabel: res.Label,
		Signals:         res.Signals,
		Keywords:        res.Keywords,
		Reason:          res.Reason,
		Destination:     resolved.Destination,
		Action:          string(resolved.Action),
		Rule:            string(resolved.Rule),
	}
	if res.ContentError != nil {
		v.Error = res.ContentError.Error()
	}
	return v
}

func printClassification(w io.Writer, v classifyView) {
	fmt.Fprintf(w, "%s\n", v.File)
	fmt.Fprintf(w, "  Priority:    %s (%s)\n", v.Priority, v.Reason)
	fmt.Fprintf(w, "  Confidence:  %d (%s)\n", v.Confidence, v.ConfidenceLabel)
	if len(v.Keywords) > 0 {
		fmt.Fprintf(w, "  Keywords:    %s\n", strings.Join(v.Keywords, ", "))
	}
	if len(v.Signals) > 0 {
		fmt.Fprintf(w, "  Signals:     %s\n", strings.Join(v.Signals, ", "))
	}
	fmt.Fprintf(w, "  Destination: %s (%s, rule %s)\n", v.Destination, v.Action, v.Rule)
	if v.Error != "" {
		fmt.Fprintf(w, "  Warning:     %s\n", v.Error)
	}
}
