package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/mailroom/config"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/executor"
)

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format config.OutputFormat, v any, text func(io.Writer) error) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(w, v)
	case config.OutputFormatYAML:
		return outputYAML(w, v)
	default:
		return text(w)
	}
}

// outputJSON outputs data as indented JSON.
func outputJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// outputYAML outputs data as YAML. The value goes through JSON first so the
// json tags on the domain types name the keys.
func outputYAML(w io.Writer, data any) error {
	jdata, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var obj any
	if err := json.Unmarshal(jdata, &obj); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(obj)
}

// outcomeView is the serialized form of one executor outcome.
type outcomeView struct {
	Item   string `json:"item"`
	Result string `json:"result"`
	Source string `json:"source"`
	Dest   string `json:"dest,omitempty"`
	Note   string `json:"note,omitempty"`
	Code   string `json:"error_code,omitempty"`
	Error  string `json:"error,omitempty"`
	Action string `json:"suggested_action,omitempty"`
}

// reportView is the serialized form of an executor report.
type reportView struct {
	DryRun   bool           `json:"dry_run"`
	Counts   map[string]int `json:"counts"`
	Outcomes []outcomeView  `json:"outcomes"`
}

func newReportView(r *executor.Report) *reportView {
	if r == nil {
		return nil
	}
	v := &reportView{DryRun: r.DryRun, Counts: r.Counts(), Outcomes: make([]outcomeView, 0, len(r.Outcomes))}
	for _, o := range r.Outcomes {
		ov := outcomeView{
			Item:   o.Move.Name,
			Result: string(o.Result),
			Source: o.Move.Source,
			Dest:   o.Dest,
			Note:   o.Note,
		}
		if o.Err != nil {
			ov.Code = string(o.Err.Code)
			ov.Error = o.Err.Error()
			ov.Action = mrerrors.Describe(o.Err.Code).SuggestedAction
		}
		v.Outcomes = append(v.Outcomes, ov)
	}
	return v
}

// printReport writes the per-item outcome table and the summary line.
func printReport(w io.Writer, r *executor.Report) {
	if r == nil || r.Total() == 0 {
		fmt.Fprintln(w, "No items.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tRESULT\tDESTINATION\tNOTE")
	fmt.Fprintln(tw, "----\t------\t-----------\t----")
	for _, o := range r.Outcomes {
		note := o.Note
		if o.Err != nil {
			note = fmt.Sprintf("%s: %s", o.Err.Code, o.Err.Message)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Move.Name, o.Result, valueOrDash(o.Dest), note)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nSummary: %s\n", r.Summary())

	seen := make(map[mrerrors.ErrorCode]bool)
	for _, o := range r.Outcomes {
		if o.Err == nil || seen[o.Err.Code] {
			continue
		}
		seen[o.Err.Code] = true
		info := mrerrors.Describe(o.Err.Code)
		fmt.Fprintf(w, "  %s: %s. %s\n", info.Code, info.Description, info.SuggestedAction)
	}
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
