package executor

import (
	"fmt"
	"strings"
)

// Report aggregates outcomes for one run.
type Report struct {
	DryRun   bool
	Outcomes []Outcome
	counts   map[Result]int
}

// NewReport creates an empty report.
func NewReport(dryRun bool) *Report {
	return &Report{DryRun: dryRun, counts: make(map[Result]int)}
}

// Add records an outcome.
func (r *Report) Add(o Outcome) {
	if r.counts == nil {
		r.counts = make(map[Result]int)
	}
	r.Outcomes = append(r.Outcomes, o)
	r.counts[o.Result]++
}

// Count returns the number of outcomes with result res.
func (r *Report) Count(res Result) int {
	return r.counts[res]
}

// Total is the number of recorded outcomes.
func (r *Report) Total() int {
	return len(r.Outcomes)
}

// Failed returns the failed outcomes.
func (r *Report) Failed() []Outcome {
	return r.filter(ResultFailed)
}

// Skipped returns the skipped outcomes.
func (r *Report) Skipped() []Outcome {
	return r.filter(ResultSkipped)
}

func (r *Report) filter(res Result) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Result == res {
			out = append(out, o)
		}
	}
	return out
}

// Counts returns the non-zero counts keyed by result name.
func (r *Report) Counts() map[string]int {
	out := make(map[string]int)
	for _, res := range Results {
		if n := r.counts[res]; n > 0 {
			out[string(res)] = n
		}
	}
	return out
}

// Summary renders the counts as "moved=2 skipped=1", in report order.
func (r *Report) Summary() string {
	var parts []string
	for _, res := range Results {
		if n := r.counts[res]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", res, n))
		}
	}
	if len(parts) == 0 {
		return "no items"
	}
	return strings.Join(parts, " ")
}
