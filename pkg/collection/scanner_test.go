package collection

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/executor"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

var fixedNow = time.Date(2025, 12, 16, 17, 22, 45, 0, time.Local)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newScanner(t *testing.T, l layout.Layout, dryRun bool, opts ...ScannerOption) *Scanner {
	t.Helper()
	opts = append([]ScannerOption{
		WithExecutor(executor.New(executor.WithDryRun(dryRun))),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return NewScanner(l, rules.Default(), opts...)
}

func TestScan_Live(t *testing.T) {
	l := layout.New(t.TempDir())
	incoming := l.Collection(layout.CollectionIncoming)
	writeFile(t, filepath.Join(incoming, "a.pdf"), "alpha")
	writeFile(t, filepath.Join(incoming, "nested", "b.exe"), "beta")
	writeFile(t, filepath.Join(incoming, "nested", "a.pdf"), "alpha")
	writeFile(t, filepath.Join(incoming, "c.weird"), "gamma")

	m := observability.NewMetrics(prometheus.NewRegistry())
	res, err := newScanner(t, l, false, WithMetrics(m)).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-12-16_bulk_import_001", res.BatchID)
	assert.FileExists(t, filepath.Join(res.BatchDir, "a.pdf"))
	assert.FileExists(t, filepath.Join(res.BatchDir, "nested", "b.exe"))
	assert.FileExists(t, filepath.Join(res.BatchDir, "nested", "a.pdf"))
	assert.NoFileExists(t, filepath.Join(incoming, "a.pdf"))

	snap := res.Snapshot
	assert.Equal(t, snapshot.StatusUnreviewed, snap.Status)
	assert.Equal(t, snapshot.SourceCollection, snap.Source)
	assert.Nil(t, snap.HumanDecision)
	require.NotNil(t, snap.CollectionMeta)
	assert.Equal(t, 4, snap.FileCount)
	assert.Equal(t, map[string]int{"pdf": 2, "exe": 1, "unknown": 1}, snap.FileTypes)
	assert.True(t, snap.Flags.ContainsExecutables)
	assert.False(t, snap.Flags.ContainsArchives)
	assert.True(t, snap.Flags.PossibleDuplicates)
	assert.Contains(t, snap.AirNotes, "Contains executable files - review security implications")
	assert.Contains(t, snap.AirNotes, "Possible duplicate filenames detected")
	assert.Contains(t, snap.AirNotes, "Identical content: a.pdf, nested/a.pdf")

	stored, err := snapshot.NewStore(l.Snapshots(layout.SourceCollection), nil).Load(res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, snap.FileCount, stored.FileCount)

	entries, err := ReadBatchLog(l.BatchLog())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.BatchID, entries[0].BatchID)
	assert.Equal(t, 4, entries[0].FileCount)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BatchesTotal))
}

func TestScan_SameDayIndexIncrements(t *testing.T) {
	l := layout.New(t.TempDir())
	incoming := l.Collection(layout.CollectionIncoming)
	s := newScanner(t, l, false)

	writeFile(t, filepath.Join(incoming, "one.txt"), "1")
	first, err := s.Scan(context.Background())
	require.NoError(t, err)

	writeFile(t, filepath.Join(incoming, "two.txt"), "2")
	second, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-12-16_bulk_import_001", first.BatchID)
	assert.Equal(t, "2025-12-16_bulk_import_002", second.BatchID)

	entries, err := ReadBatchLog(l.BatchLog())
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	batches, err := s.Batches()
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, second.BatchID, batches[0].ID)
}

func TestScan_IndexSurvivesBatchMovedOut(t *testing.T) {
	l := layout.New(t.TempDir())
	incoming := l.Collection(layout.CollectionIncoming)
	batches := l.Collection(layout.CollectionBatches)
	s := newScanner(t, l, false)

	writeFile(t, filepath.Join(incoming, "one.pdf"), "1")
	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	writeFile(t, filepath.Join(incoming, "two.pdf"), "2")
	second, err := s.Scan(context.Background())
	require.NoError(t, err)

	review := l.Collection(layout.CollectionReview)
	require.NoError(t, os.MkdirAll(review, 0755))
	require.NoError(t, os.Rename(first.BatchDir, filepath.Join(review, first.BatchID)))

	writeFile(t, filepath.Join(incoming, "three.pdf"), "3")
	third, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-12-16_bulk_import_003", third.BatchID)
	assert.FileExists(t, filepath.Join(batches, third.BatchID, "three.pdf"))
	assert.NoFileExists(t, filepath.Join(second.BatchDir, "three.pdf"))
	assert.NoFileExists(t, filepath.Join(incoming, "three.pdf"))

	entries, err := ReadBatchLog(l.BatchLog())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestScan_ExistingBatchDirIsNotReused(t *testing.T) {
	l := layout.New(t.TempDir())
	incoming := l.Collection(layout.CollectionIncoming)
	writeFile(t, filepath.Join(incoming, "a.pdf"), "a")
	s := newScanner(t, l, false)

	id, err := s.nextBatchID(fixedNow)
	require.NoError(t, err)
	batchDir := filepath.Join(l.Collection(layout.CollectionBatches), id)
	require.NoError(t, s.checkBatchFree(id, batchDir))

	writeFile(t, s.store.Path(id), "{}")
	err = s.checkBatchFree(id, batchDir)
	assert.True(t, mrerrors.IsInvalidState(err))

	require.NoError(t, os.Remove(s.store.Path(id)))
	require.NoError(t, os.MkdirAll(batchDir, 0755))
	err = s.checkBatchFree(id, batchDir)
	assert.True(t, mrerrors.IsInvalidState(err))
	assert.FileExists(t, filepath.Join(incoming, "a.pdf"))
}

func TestBatchIndex(t *testing.T) {
	prefix := "2025-12-16_bulk"
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"2025-12-16_bulk_007", 7, true},
		{"2025-12-16_bulk_import_001", 0, false},
		{"2025-12-16_bulk_01", 0, false},
		{"2025-12-16_bulk_0001", 0, false},
		{"2025-12-16_bulk_abc", 0, false},
		{"2025-12-15_bulk_001", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := batchIndex(tt.name, prefix)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestScan_SourcePrefixDoesNotShareIndex(t *testing.T) {
	l := layout.New(t.TempDir())
	incoming := l.Collection(layout.CollectionIncoming)

	writeFile(t, filepath.Join(incoming, "a.pdf"), "a")
	_, err := newScanner(t, l, false).Scan(context.Background())
	require.NoError(t, err)

	writeFile(t, filepath.Join(incoming, "b.pdf"), "b")
	res, err := newScanner(t, l, false, WithSource("bulk")).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-12-16_bulk_001", res.BatchID)
}

func TestScan_EmptyIncoming(t *testing.T) {
	l := layout.New(t.TempDir())
	require.NoError(t, os.MkdirAll(l.Collection(layout.CollectionIncoming), 0755))

	_, err := newScanner(t, l, false).Scan(context.Background())
	assert.True(t, mrerrors.IsNothingToDo(err))
}

func TestScan_MissingIncoming(t *testing.T) {
	l := layout.New(t.TempDir())

	_, err := newScanner(t, l, false).Scan(context.Background())
	assert.True(t, mrerrors.IsNotFound(err))
}

func TestScan_DryRunPersistsNothing(t *testing.T) {
	l := layout.New(t.TempDir())
	incoming := l.Collection(layout.CollectionIncoming)
	writeFile(t, filepath.Join(incoming, "bundle.zip"), "zip")

	res, err := newScanner(t, l, true).Scan(context.Background())
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.True(t, res.Snapshot.Flags.ContainsArchives)
	assert.Equal(t, 1, res.Report.Count(executor.ResultPlanned))
	assert.FileExists(t, filepath.Join(incoming, "bundle.zip"))
	assert.NoDirExists(t, l.Collection(layout.CollectionBatches))
	assert.NoDirExists(t, l.Snapshots(layout.SourceCollection))
	assert.NoFileExists(t, l.BatchLog())
}

func TestScan_InvalidSource(t *testing.T) {
	l := layout.New(t.TempDir())
	writeFile(t, filepath.Join(l.Collection(layout.CollectionIncoming), "a.txt"), "a")

	_, err := newScanner(t, l, false, WithSource("../escape")).Scan(context.Background())
	assert.True(t, mrerrors.IsValidation(err))
}

func TestAppendBatchLog_MalformedLeftAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch_log.json")
	writeFile(t, path, "{broken")

	err := AppendBatchLog(path, BatchLogEntry{BatchID: "x"})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))
}
