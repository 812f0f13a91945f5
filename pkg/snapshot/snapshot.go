// Package snapshot models one unit of intake work and persists it as JSON.
//
// A Snapshot moves forward through its lifecycle only:
//
//	unprocessed ──► processed ──► air_processed ──► reviewed
//	                    └─────────────────────────────▲
//	unreviewed  ──────────────────────────────────────┘
//
// Each transition stamps its own timestamp exactly once. Snapshots are an
// audit trail and are never deleted.
package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/otherjamesbrown/mailroom/pkg/contentid"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

// Status is the lifecycle state of a snapshot.
type Status string

const (
	StatusUnprocessed  Status = "unprocessed"
	StatusProcessed    Status = "processed"
	StatusAirProcessed Status = "air_processed"
	StatusUnreviewed   Status = "unreviewed"
	StatusReviewed     Status = "reviewed"
)

// Source identifies which intake path produced a snapshot.
type Source string

const (
	SourceInbox      Source = "INBOX"
	SourceCollection Source = "COLLECTION"
)

// transitions lists the allowed forward moves.
var transitions = map[Status][]Status{
	StatusUnprocessed:  {StatusProcessed},
	StatusProcessed:    {StatusAirProcessed, StatusReviewed},
	StatusAirProcessed: {StatusReviewed},
	StatusUnreviewed:   {StatusReviewed},
}

// CanAdvance reports whether from → to is an allowed transition.
func CanAdvance(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Item describes one file captured by a snapshot.
type Item struct {
	Name        string                `json:"name"`
	Path        string                `json:"path,omitempty"`
	Type        string                `json:"type"`
	Size        int64                 `json:"size"`
	Modified    time.Time             `json:"modified"`
	Fingerprint contentid.Fingerprint `json:"fingerprint,omitempty"`
	Decision    *Decision             `json:"decision,omitempty"`
}

// Action is what the triage pass intends to do with an item.
type Action string

const (
	ActionEscalate Action = "escalate"
	ActionProcess  Action = "process"
	ActionReview   Action = "review"
	ActionArchive  Action = "archive"
	ActionRoute    Action = "route"
)

// Decision is the classification and routing result for one item.
type Decision struct {
	File            string         `json:"file"`
	Priority        rules.Priority `json:"priority"`
	Destination     string         `json:"destination"`
	Action          Action         `json:"action"`
	Confidence      int            `json:"confidence"`
	ConfidenceLabel string         `json:"confidence_label"`
	Signals         []string       `json:"signals"`
	Reason          string         `json:"reason"`
}

// Flags are batch-level risk markers for a COLLECTION snapshot.
type Flags struct {
	ContainsExecutables bool `json:"contains_executables"`
	ContainsArchives    bool `json:"contains_archives"`
	PossibleDuplicates  bool `json:"possible_duplicates"`
}

// CollectionMeta is the aggregate metadata of a COLLECTION batch.
type CollectionMeta struct {
	FileCount   int            `json:"file_count"`
	TotalSizeMB float64        `json:"total_size_mb"`
	FileTypes   map[string]int `json:"file_types"`
	Flags       Flags          `json:"flags"`
	AirNotes    []string       `json:"air_notes"`
}

// HumanDecision is written only by a reviewer.
type HumanDecision struct {
	Decision  string    `json:"decision"`
	Reviewer  string    `json:"reviewer,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Reviewer verdicts accepted by Review.
var reviewVerdicts = []string{"approve", "reject", "hold", "promote"}

// Snapshot is the persisted record of one batch.
type Snapshot struct {
	ID     string `json:"id"`
	Source Source `json:"source"`
	Status Status `json:"status"`
	// Path is the directory the items were listed from.
	Path  string `json:"path,omitempty"`
	Items []Item `json:"items"`

	CreatedAt      time.Time  `json:"created_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	AirProcessedAt *time.Time `json:"air_processed_at,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`

	*CollectionMeta

	AirOutput *Output `json:"air_output,omitempty"`

	// HumanDecision is always serialized, as null until a reviewer writes it.
	HumanDecision *HumanDecision `json:"human_decision"`
}

// NewID derives an inbox snapshot id from a timestamp. Ids sort
// lexically in time order.
func NewID(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return strings.NewReplacer(":", "-", ".", "-").Replace(ts)
}

// Advance moves the snapshot to status to and stamps the matching timestamp.
func (s *Snapshot) Advance(to Status, now time.Time) error {
	if !CanAdvance(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", mrerrors.ErrInvalidTransition, s.Status, to)
	}

	stamp := now.UTC()
	switch to {
	case StatusProcessed:
		s.ProcessedAt = &stamp
	case StatusAirProcessed:
		s.AirProcessedAt = &stamp
	case StatusReviewed:
		s.ReviewedAt = &stamp
	}
	s.Status = to
	return nil
}

// Review records a reviewer's verdict and advances to reviewed.
func (s *Snapshot) Review(d HumanDecision, now time.Time) error {
	verdict := strings.ToLower(strings.TrimSpace(d.Decision))
	valid := false
	for _, v := range reviewVerdicts {
		if v == verdict {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: decision must be one of %s, got %q",
			mrerrors.ErrValidation, strings.Join(reviewVerdicts, ", "), d.Decision)
	}
	if s.HumanDecision != nil {
		return fmt.Errorf("%w: snapshot %s already has a human decision", mrerrors.ErrInvalidState, s.ID)
	}

	if err := s.Advance(StatusReviewed, now); err != nil {
		return err
	}
	d.Decision = verdict
	d.DecidedAt = now.UTC()
	s.HumanDecision = &d
	return nil
}

// ItemNames returns the item names in snapshot order.
func (s *Snapshot) ItemNames() []string {
	names := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		names = append(names, it.Name)
	}
	return names
}
