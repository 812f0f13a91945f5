// Package observability provides run events, metrics, and tracing for the
// mailroom pipelines.
package observability

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Pipeline names used as metric labels and span attributes.
const (
	PipelineMailroom = "mailroom"
	PipelineTriage   = "triage"
	PipelineOffices  = "offices"
	PipelineDeliver  = "deliver"
	PipelineCollect  = "collect"
)

// Run status values
const (
	RunStatusCompleted = "completed"
	RunStatusNoop      = "noop"
	RunStatusAborted   = "aborted"
	RunStatusFailed    = "failed"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// RunEvent summarizes one pipeline run.
type RunEvent struct {
	EventID    string         `json:"event_id"`
	RunID      string         `json:"run_id"`
	Pipeline   string         `json:"pipeline"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
	Status     string         `json:"status"`
	DryRun     bool           `json:"dry_run"`
	Counts     map[string]int `json:"counts,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewRunEvent creates a run event stamped now.
func NewRunEvent(runID, pipeline string, dryRun bool) *RunEvent {
	return &RunEvent{
		EventID:   uuid.New().String(),
		RunID:     runID,
		Pipeline:  pipeline,
		Status:    RunStatusCompleted,
		DryRun:    dryRun,
		Timestamp: time.Now().UTC(),
	}
}

// Finish sets the final status and duration since start.
func (e *RunEvent) Finish(status string, start time.Time, err error) {
	e.Status = status
	e.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		e.Error = err.Error()
	}
}

// ToJSON serializes the event.
func (e *RunEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
