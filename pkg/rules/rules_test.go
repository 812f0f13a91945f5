package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_ReturnsFreshValue(t *testing.T) {
	a := Default()
	b := Default()

	a.Offices[0] = "MUTATED"
	a.NonActionable[".log"] = "ELSEWHERE"

	assert.Equal(t, "CEO", b.Offices[0])
	assert.Equal(t, BucketLogs, b.NonActionable[".log"])
}

func TestDefault_Tables(t *testing.T) {
	r := Default()

	assert.Len(t, r.Offices, 9)
	assert.Equal(t, "EXEC", r.DefaultOffice)
	assert.True(t, r.IsOffice(r.DefaultOffice))
	assert.Equal(t, StageDone, r.DefaultStage)
	assert.True(t, r.IsStage(r.DefaultStage))

	assert.Equal(t, []Priority{PriorityUrgent, PriorityHigh, PriorityMedium},
		[]Priority{r.Tiers[0].Priority, r.Tiers[1].Priority, r.Tiers[2].Priority})
	assert.Len(t, r.Keywords(), 14)
}

func TestIsAllowed(t *testing.T) {
	r := Default()

	for _, name := range []string{"a.docx", "B.PDF", "notes.txt", "plan.odt", "deck.PPT"} {
		assert.True(t, r.IsAllowed(name), name)
	}
	for _, name := range []string{"random.bin", "run.log", "noext", "image.png"} {
		assert.False(t, r.IsAllowed(name), name)
	}
}

func TestArchiveBucket(t *testing.T) {
	r := Default()

	tests := []struct {
		name   string
		bucket string
		ok     bool
	}{
		{"server.log", BucketLogs, true},
		{"job.OUT", BucketLogs, true},
		{"app.pid", BucketRuntimeExhaust, true},
		{"draft.docx.bak", BucketBackups, true},
		{".DS_Store", BucketBackups, true},
		{"Thumbs.db", BucketBackups, true},
		{"photos/Thumbs.db", BucketBackups, true},
		{"events.jsonl", BucketMetadata, true},
		{"bundle.tar.gz", BucketPackages, true},
		{"report.pdf", "", false},
		{"other.db", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, ok := r.ArchiveBucket(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, bucket)
		})
	}
}

func TestCanonical(t *testing.T) {
	r := Default()

	got, ok := Canonical(r.Offices, " cto ")
	assert.True(t, ok)
	assert.Equal(t, "CTO", got)

	got, ok = Canonical(r.Stages, "waiting")
	assert.True(t, ok)
	assert.Equal(t, StageWaiting, got)

	_, ok = Canonical(r.Offices, "")
	assert.False(t, ok)
	_, ok = Canonical(r.Offices, "CXO")
	assert.False(t, ok)
}

func TestCollectionTables(t *testing.T) {
	r := Default()

	assert.Equal(t, "pdf", r.TypeBucket("a.PDF"))
	assert.Equal(t, "unknown", r.TypeBucket("a.mp4"))
	assert.Equal(t, "unknown", r.TypeBucket("Makefile"))

	assert.True(t, r.IsExecutable("setup.EXE"))
	assert.True(t, r.IsExecutable("run.bat"))
	assert.False(t, r.IsExecutable("run.sh"))

	assert.True(t, r.IsArchive("x.7z"))
	assert.False(t, r.IsArchive("x.pdf"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("URGENT"), Fold("urgent"))
	assert.Equal(t, "ceo meeting", Fold("CEO Meeting"))
}
