package collection

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

// Risk thresholds.
const (
	StaleBatchDays      = 7
	LargeBacklog        = 50
	GrowingBacklog      = 10
	LargeBatchMB        = 1000.0
	batchDateLayout     = "2006-01-02"
	defaultBatchSource  = "bulk_import"
	batchIndexSeparator = "_"
)

// Status is a point-in-time view of the COLLECTION area.
type Status struct {
	IncomingCount   int      `json:"incoming_count"`
	BatchCount      int      `json:"batch_count"`
	ReviewCount     int      `json:"review_count"`
	HoldCount       int      `json:"hold_count"`
	TrashCount      int      `json:"trash_count"`
	TotalBacklog    int      `json:"total_backlog"`
	OldestBatch     string   `json:"oldest_batch,omitempty"`
	OldestBatchDays int      `json:"oldest_batch_days"`
	ActiveCount     int      `json:"active_count"`
	Risks           []string `json:"risks"`
}

// Monitor inspects the COLLECTION area under l. Missing directories count
// as empty.
func Monitor(l layout.Layout, now time.Time) (*Status, error) {
	st := &Status{Risks: []string{}}

	var err error
	if st.IncomingCount, err = countFiles(l.Collection(layout.CollectionIncoming)); err != nil {
		return nil, err
	}
	if st.ReviewCount, err = countFiles(l.Collection(layout.CollectionReview)); err != nil {
		return nil, err
	}
	if st.HoldCount, err = countFiles(l.Collection(layout.CollectionHold)); err != nil {
		return nil, err
	}
	if st.TrashCount, err = countFiles(l.Collection(layout.CollectionTrash)); err != nil {
		return nil, err
	}

	batches, err := batchDirs(l.Collection(layout.CollectionBatches))
	if err != nil {
		return nil, err
	}
	st.BatchCount = len(batches)
	if len(batches) > 0 {
		st.OldestBatch = batches[0]
		if days, ok := batchAgeDays(batches[0], now); ok {
			st.OldestBatchDays = days
		}
	}

	active, err := os.ReadDir(l.Stage(rules.StageActive))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("listing ACTIVE: %w", err)
	}
	st.ActiveCount = len(active)

	st.TotalBacklog = st.IncomingCount + st.BatchCount + st.ReviewCount + st.HoldCount
	st.Risks = st.risks()
	return st, nil
}

func (st *Status) risks() []string {
	risks := []string{}
	if st.IncomingCount > 0 {
		risks = append(risks, "Files waiting in INCOMING - run Process_Collection")
	}
	if st.OldestBatchDays > StaleBatchDays {
		risks = append(risks, fmt.Sprintf("Oldest batch is %d days old - review needed", st.OldestBatchDays))
	}
	if st.TotalBacklog > LargeBacklog {
		risks = append(risks, fmt.Sprintf("Large COLLECTION backlog (%d items)", st.TotalBacklog))
	}
	if st.ActiveCount == 0 && st.TotalBacklog > GrowingBacklog {
		risks = append(risks, "Inbox idle but COLLECTION growing - consider bulk processing")
	}
	return risks
}

// NextSteps renders the collection lines of the triage next steps.
func (st *Status) NextSteps() []string {
	var steps []string
	if st.IncomingCount > 0 {
		steps = append(steps, fmt.Sprintf("COLLECTION: %d files waiting in INCOMING - run Process_Collection when ready", st.IncomingCount))
	}
	if st.BatchCount > 0 {
		steps = append(steps, fmt.Sprintf("COLLECTION: %d unreviewed batches available - check COLLECTION Overview", st.BatchCount))
	}
	for _, r := range st.Risks {
		steps = append(steps, "COLLECTION RISK: "+r)
	}
	return append(steps, "COLLECTION batches are separate from Inbox - they don't affect daily operations until manually promoted")
}

// Record publishes the counts as gauges.
func (st *Status) Record(m *observability.Metrics) {
	m.SetCollectionItems("incoming", st.IncomingCount)
	m.SetCollectionItems("batches", st.BatchCount)
	m.SetCollectionItems("review", st.ReviewCount)
	m.SetCollectionItems("hold", st.HoldCount)
	m.SetCollectionItems("trash_candidate", st.TrashCount)
}

// countFiles counts regular files below dir.
func countFiles(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", dir, err)
	}
	return n, nil
}

// batchDirs lists batch directory names, oldest first.
func batchDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// batchAgeDays parses the date prefix of a batch id.
func batchAgeDays(batchID string, now time.Time) (int, bool) {
	prefix, _, _ := strings.Cut(batchID, batchIndexSeparator)
	day, err := time.ParseInLocation(batchDateLayout, prefix, now.Location())
	if err != nil {
		return 0, false
	}
	return int(now.Sub(day).Hours() / 24), true
}
