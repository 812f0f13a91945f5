package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

func newInbox(id string, status Status) *Snapshot {
	return &Snapshot{
		ID:        id,
		Source:    SourceInbox,
		Status:    status,
		CreatedAt: t0,
		Items:     []Item{{Name: "memo.txt", Type: "file", Size: 12, Modified: t0}},
	}
}

func TestStore_CreateLoad(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "snapshots", "inbox"), nil)

	s := newInbox("2025-12-16T17-22-45-123Z", StatusUnprocessed)
	require.NoError(t, st.Create(s))
	assert.FileExists(t, st.Path(s.ID))

	loaded, err := st.Load(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, StatusUnprocessed, loaded.Status)
	assert.Equal(t, []string{"memo.txt"}, loaded.ItemNames())
	assert.Nil(t, loaded.HumanDecision)

	err = st.Create(s)
	assert.True(t, mrerrors.IsInvalidState(err), "duplicate ids must be rejected")
}

func TestStore_CreateRequiresID(t *testing.T) {
	st := NewStore(t.TempDir(), nil)
	assert.True(t, mrerrors.IsValidation(st.Create(&Snapshot{})))
}

func TestStore_LoadMissing(t *testing.T) {
	st := NewStore(t.TempDir(), nil)
	_, err := st.Load("nope")
	assert.True(t, mrerrors.IsNotFound(err))
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, nil)

	s := newInbox("a", StatusUnprocessed)
	require.NoError(t, st.Save(s))
	require.NoError(t, s.Advance(StatusProcessed, t0))
	require.NoError(t, st.Save(s))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.json", entries[0].Name())
}

func TestStore_ListDescending(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, nil)

	for _, id := range []string{"2025-01-02T00-00-00-000Z", "2025-03-01T00-00-00-000Z", "2025-02-01T00-00-00-000Z"} {
		require.NoError(t, st.Create(newInbox(id, StatusUnprocessed)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	ids, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-01T00-00-00-000Z", "2025-02-01T00-00-00-000Z", "2025-01-02T00-00-00-000Z"}, ids)

	latest, err := st.Latest()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T00-00-00-000Z", latest.ID)
}

func TestStore_EmptyOrMissingDir(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "absent"), nil)

	ids, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = st.Latest()
	assert.True(t, mrerrors.IsNotFound(err))
}

func TestStore_LatestWithStatus(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir, nil)

	require.NoError(t, st.Create(newInbox("2025-01-01T00-00-00-000Z", StatusProcessed)))
	require.NoError(t, st.Create(newInbox("2025-01-02T00-00-00-000Z", StatusAirProcessed)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2025-01-03T00-00-00-000Z.json"), []byte("{broken"), 0o644))

	s, err := st.LatestWithStatus(StatusProcessed)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00-00-00-000Z", s.ID)

	_, err = st.LatestWithStatus(StatusUnprocessed)
	assert.True(t, mrerrors.IsNotFound(err))
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air_output.json")
	now := time.Date(2025, 12, 16, 18, 0, 0, 0, time.UTC)

	out := NewOutput([]Decision{{
		File:            "urgent_ceo_meeting.txt",
		Priority:        rules.PriorityUrgent,
		Destination:     rules.StageActive,
		Action:          ActionEscalate,
		Confidence:      90,
		ConfidenceLabel: "High",
		Signals:         []string{"allowed_extension"},
		Reason:          "Contains urgent keywords (critical, emergency, immediate)",
	}}, []string{"Monitor ACTIVE directory for new arrivals"}, now)

	require.NoError(t, WriteOutput(path, out))

	back, err := ReadOutput(path)
	require.NoError(t, err)
	assert.Equal(t, "AIR", back.Agent)
	assert.Equal(t, "route", back.Action)
	assert.Equal(t, "1 incoming requests processed", back.Summary)
	assert.Equal(t, now, back.Timestamp)
	require.Len(t, back.Items, 1)
	assert.Equal(t, out.Items[0], back.Items[0])
}

func TestNewOutput_EmptySlices(t *testing.T) {
	out := NewOutput(nil, nil, t0)
	assert.NotNil(t, out.Items)
	assert.NotNil(t, out.NextSteps)
	assert.Equal(t, "0 incoming requests processed", out.Summary)
}
