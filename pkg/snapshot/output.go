package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Output is the decision record consumed by presentation collaborators.
type Output struct {
	Agent     string     `json:"agent"`
	Action    string     `json:"action"`
	Summary   string     `json:"summary"`
	Items     []Decision `json:"items"`
	NextSteps []string   `json:"next_steps"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewOutput builds the triage output for decisions.
func NewOutput(decisions []Decision, nextSteps []string, now time.Time) Output {
	if decisions == nil {
		decisions = []Decision{}
	}
	if nextSteps == nil {
		nextSteps = []string{}
	}
	return Output{
		Agent:     "AIR",
		Action:    string(ActionRoute),
		Summary:   fmt.Sprintf("%d incoming requests processed", len(decisions)),
		Items:     decisions,
		NextSteps: nextSteps,
		Timestamp: now.UTC(),
	}
}

// WriteOutput writes the decision output file atomically.
func WriteOutput(path string, out Output) error {
	return WriteJSON(path, out)
}

// ReadOutput loads a decision output file.
func ReadOutput(path string) (*Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing decision output %s: %w", path, err)
	}
	return &out, nil
}

// WriteJSON writes v as indented JSON to path through a temp file in the
// same directory followed by a rename, so readers never see a partial file.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
