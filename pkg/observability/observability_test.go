package observability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRunEvent(t *testing.T) {
	event := NewRunEvent("run-1", PipelineMailroom, true)

	if event.EventID == "" {
		t.Error("EventID should be generated")
	}
	if event.RunID != "run-1" {
		t.Errorf("RunID = %s, want run-1", event.RunID)
	}
	if event.Status != RunStatusCompleted {
		t.Errorf("Status = %s, want %s", event.Status, RunStatusCompleted)
	}
	if !event.DryRun {
		t.Error("DryRun should be true")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestRunEvent_FinishAndJSON(t *testing.T) {
	event := NewRunEvent(NewRunID(), PipelineTriage, false)
	event.Counts = map[string]int{"moved": 2}
	event.Finish(RunStatusAborted, time.Now().Add(-time.Second), errors.New("boom"))

	if event.DurationMs < 1000 {
		t.Errorf("DurationMs = %d, want >= 1000", event.DurationMs)
	}

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["status"] != RunStatusAborted {
		t.Errorf("status = %v, want aborted", decoded["status"])
	}
	if decoded["error"] != "boom" {
		t.Errorf("error = %v, want boom", decoded["error"])
	}
}

func TestNewRunID_Unique(t *testing.T) {
	if NewRunID() == NewRunID() {
		t.Error("run ids should differ")
	}
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordItem(PipelineMailroom, "moved")
	m.RecordItem(PipelineMailroom, "moved")
	m.RecordItemError(PipelineTriage, "missing_source")
	m.RecordClassification("urgent", "High", 90)
	m.RecordRun(PipelineMailroom, RunStatusCompleted, 0.2)
	m.RecordInvariantViolation()
	m.SetCollectionItems("incoming", 4)
	m.RecordBatch()

	if got := testutil.ToFloat64(m.ItemsTotal.WithLabelValues(PipelineMailroom, "moved")); got != 2 {
		t.Errorf("items moved = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ItemErrorsTotal.WithLabelValues(PipelineTriage, "missing_source")); got != 1 {
		t.Errorf("item errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ClassificationsTotal.WithLabelValues("urgent", "High")); got != 1 {
		t.Errorf("classifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues(PipelineMailroom, RunStatusCompleted)); got != 1 {
		t.Errorf("runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InvariantViolationsTotal); got != 1 {
		t.Errorf("invariant violations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CollectionItems.WithLabelValues("incoming")); got != 4 {
		t.Errorf("collection items = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.BatchesTotal); got != 1 {
		t.Errorf("batches = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordItem("x", "y")
	m.RecordClassification("low", "Low", 10)
	m.RecordRun("x", "y", 1)
	m.RecordInvariantViolation()
}

func TestTracer_NoopProvider(t *testing.T) {
	tr := NewTracer()
	ctx, span := tr.StartRunSpan(context.Background(), PipelineTriage, "run-1", true)
	defer span.End()

	_, item := tr.StartItemSpan(ctx, "a.txt")
	h := NewSpanHelper(item)
	h.SetDecision("urgent", 90, "ACTIVE", "priority")
	h.SetOutcome("planned")
	h.SetError(errors.New("x"), "move_failed")
	item.End()
}
