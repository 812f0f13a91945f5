package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

func TestClassify_Scores(t *testing.T) {
	c := New(rules.Default())

	tests := []struct {
		name         string
		filename     string
		content      string
		wantPriority rules.Priority
		wantScore    int
		wantLabel    string
		wantSignals  []string
	}{
		{
			name:         "urgent ceo meeting",
			filename:     "urgent_ceo_meeting.txt",
			content:      "Urgent: CEO meeting tomorrow",
			wantPriority: rules.PriorityUrgent,
			wantScore:    90,
			wantLabel:    LabelHigh,
			wantSignals:  []string{SignalAllowedExtension, SignalKeywordMatches, SignalKeywordDensity, SignalClearFilename, SignalNoAmbiguity},
		},
		{
			name:         "urgent and ceo only",
			filename:     "urgent_ceo_meeting.txt",
			content:      "urgent ceo",
			wantPriority: rules.PriorityUrgent,
			wantScore:    80,
			wantLabel:    LabelHigh,
			wantSignals:  []string{SignalAllowedExtension, SignalKeywordMatches, SignalKeywordDensity, SignalClearFilename, SignalNoAmbiguity},
		},
		{
			name:         "disallowed extension no keywords",
			filename:     "random.bin",
			content:      "",
			wantPriority: rules.PriorityLow,
			wantScore:    15,
			wantLabel:    LabelLow,
			wantSignals:  []string{SignalNoAmbiguity},
		},
		{
			name:         "single urgent keyword minimum",
			filename:     "memo.txt",
			content:      "this is CRITICAL",
			wantPriority: rules.PriorityUrgent,
			wantScore:    55,
			wantLabel:    LabelMedium,
			wantSignals:  []string{SignalAllowedExtension, SignalKeywordMatches, SignalNoAmbiguity},
		},
		{
			name:         "high wins over medium",
			filename:     "q3-budget-notes.docx",
			content:      "please review and check the numbers",
			wantPriority: rules.PriorityHigh,
			wantScore:    30 + 20 + 15 + 10 + 15,
			wantLabel:    LabelHigh,
			wantSignals:  []string{SignalAllowedExtension, SignalKeywordMatches, SignalKeywordDensity, SignalClearFilename, SignalNoAmbiguity},
		},
		{
			name:         "multiword medium keyword",
			filename:     "notes.pdf",
			content:      "Follow up next week",
			wantPriority: rules.PriorityMedium,
			wantScore:    55,
			wantLabel:    LabelMedium,
			wantSignals:  []string{SignalAllowedExtension, SignalKeywordMatches, SignalNoAmbiguity},
		},
		{
			name:         "every tier",
			filename:     "board pack final.pdf",
			content:      "executive deadline meeting",
			wantPriority: rules.PriorityUrgent,
			wantScore:    100,
			wantLabel:    LabelHigh,
			wantSignals:  []string{SignalAllowedExtension, SignalKeywordMatches, SignalKeywordDensity, SignalClearFilename, SignalNoAmbiguity},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.content, tt.filename)
			assert.Equal(t, tt.wantPriority, got.Priority)
			assert.Equal(t, tt.wantScore, got.Confidence)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.Equal(t, tt.wantSignals, got.Signals)
			assert.Equal(t, Reason(tt.wantPriority), got.Reason)
		})
	}
}

func TestClassify_AllowedUrgentFloor(t *testing.T) {
	c := New(rules.Default())
	r := rules.Default()

	for _, ext := range r.AllowedExtensions {
		for _, kw := range r.Tiers[0].Keywords {
			got := c.Classify("note: "+kw, "x"+ext)
			assert.Equal(t, rules.PriorityUrgent, got.Priority, "%s %s", ext, kw)
			assert.GreaterOrEqual(t, got.Confidence, 55, "%s %s", ext, kw)
		}
	}
}

func TestClassify_CapAt100(t *testing.T) {
	r := rules.Default()
	r.Tiers = append(r.Tiers,
		rules.KeywordTier{Priority: rules.PriorityLow, Keywords: []string{"invoice"}},
		rules.KeywordTier{Priority: rules.PriorityLow, Keywords: []string{"contract"}},
	)
	c := New(r)

	got := c.Classify("critical deadline meeting invoice contract", "a_b_c.pdf")
	assert.Equal(t, 100, got.Confidence)
	assert.Equal(t, rules.PriorityUrgent, got.Priority)
}

func TestClassify_Keywords(t *testing.T) {
	c := New(rules.Default())
	got := c.Classify("URGENT urgent ceo; please REVIEW", "a.txt")
	assert.Equal(t, []string{"urgent", "ceo", "review"}, got.Keywords)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, LabelHigh, Label(100))
	assert.Equal(t, LabelHigh, Label(80))
	assert.Equal(t, LabelMedium, Label(79))
	assert.Equal(t, LabelMedium, Label(50))
	assert.Equal(t, LabelLow, Label(49))
	assert.Equal(t, LabelLow, Label(0))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "Standard processing priority", Reason(rules.PriorityLow))
	assert.Equal(t, "Standard processing priority", Reason("bogus"))
	assert.Contains(t, Reason(rules.PriorityMedium), "review keywords")
}

func TestFilenameTokens(t *testing.T) {
	assert.Equal(t, []string{"urgent", "ceo", "meeting.txt"}, FilenameTokens("urgent_ceo_meeting.txt"))
	assert.Equal(t, []string{"a", "b"}, FilenameTokens("__a--b  "))
	assert.Empty(t, FilenameTokens("_-_"))
}

func TestClassifyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urgent_ceo_meeting.txt")
	require.NoError(t, os.WriteFile(path, []byte("Urgent: CEO meeting tomorrow"), 0o644))

	got := New(rules.Default()).ClassifyFile(path)
	assert.Equal(t, rules.PriorityUrgent, got.Priority)
	assert.Equal(t, 90, got.Confidence)
	assert.Nil(t, got.ContentError)
}

func TestClassifyFile_Unreadable(t *testing.T) {
	dir := t.TempDir()
	c := New(rules.Default())

	missing := c.ClassifyFile(filepath.Join(dir, "x_y_z.pdf"))
	assert.Equal(t, rules.PriorityLow, missing.Priority)
	assert.Equal(t, 55, missing.Confidence)
	require.NotNil(t, missing.ContentError)
	assert.Equal(t, mrerrors.ErrMissingSource, missing.ContentError.Code)

	sub := filepath.Join(dir, "folder.txt")
	require.NoError(t, os.Mkdir(sub, 0o755))
	asDir := c.ClassifyFile(sub)
	assert.Equal(t, rules.PriorityLow, asDir.Priority)
	require.NotNil(t, asDir.ContentError)
	assert.Equal(t, mrerrors.ErrUnreadableContent, asDir.ContentError.Code)
}

func TestClassifyFile_Windows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(path, []byte("R\xe9sum\xe9 \x93URGENT\x94"), 0o644))

	got := New(rules.Default()).ClassifyFile(path)
	assert.Equal(t, rules.PriorityUrgent, got.Priority)
}

func TestClassifyFile_ContentCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789 urgent"), 0o644))

	got := New(rules.Default(), WithMaxContentBytes(10)).ClassifyFile(path)
	assert.Equal(t, rules.PriorityLow, got.Priority)
}

func TestDecode(t *testing.T) {
	assert.Equal(t, "plain", Decode([]byte("plain")))
	assert.Equal(t, "héllo", Decode([]byte("héllo")))
	assert.Equal(t, "“hi”", Decode([]byte{0x93, 'h', 'i', 0x94}))
	assert.Equal(t, "café", Decode([]byte("caf\xe9")))
}

func TestTrimPartialRune(t *testing.T) {
	full := []byte("abcdé")
	assert.Equal(t, []byte("abcd"), trimPartialRune(full[:5]))
	assert.Equal(t, []byte("abcd"), trimPartialRune([]byte("abcd")))
	assert.Equal(t, []byte("caf\xe9 x"), trimPartialRune([]byte("caf\xe9 x")))
}
