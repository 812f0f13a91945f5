package route

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/mailroom/config"
	"github.com/otherjamesbrown/mailroom/pkg/executor"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

func TestResolve_IsTotal(t *testing.T) {
	r := rules.Default()
	cfg := config.RoutingConfig{
		FilenameOverrides: map[string]string{"fin_": "CFO", "bogus_": "NOWHERE"},
		FunctionToOffice:  map[string]string{"Finance": "CFO", "Broken": "MARS"},
	}

	names := []string{"", "fin_report.pdf", "bogus_x.txt", "README", ".hidden", "a.b.c.d"}
	sidecars := []*Sidecar{
		nil,
		{},
		{Route: "DDM.Finance"},
		{Route: "Broken"},
		{RoutedTo: "..."},
		{Function: "cto"},
	}
	priorities := []rules.Priority{"", rules.PriorityUrgent, rules.PriorityHigh, rules.PriorityMedium, rules.PriorityLow, "bizarre"}

	for _, rt := range []*Router{NewStageRouter(r, cfg), NewOfficeRouter(r, cfg)} {
		for _, name := range names {
			for _, sc := range sidecars {
				for _, p := range priorities {
					res := rt.Resolve(Request{Filename: name, Priority: p, Sidecar: sc})
					assert.NotEmpty(t, res.Destination)
					assert.True(t, rt.Contains(res.Destination), "mode %s: %q not in set", rt.Mode(), res.Destination)
					assert.NotEmpty(t, res.Rule)
					assert.NotEmpty(t, res.Action)
				}
			}
		}
	}
}

func TestResolve_OverrideBeatsSidecar(t *testing.T) {
	rt := NewOfficeRouter(rules.Default(), config.RoutingConfig{
		FilenameOverrides: map[string]string{"legal_": "CLO"},
	})

	res := rt.Resolve(Request{Filename: "legal_contract.pdf", Sidecar: &Sidecar{Route: "CTO"}})
	assert.Equal(t, "CLO", res.Destination)
	assert.Equal(t, RuleFilenameOverride, res.Rule)
	assert.Equal(t, "legal_", res.Detail)
}

func TestResolve_LongestPrefixWins(t *testing.T) {
	rt := NewOfficeRouter(rules.Default(), config.RoutingConfig{
		FilenameOverrides: map[string]string{"fin": "CFO", "fin_legal": "CLO"},
	})

	assert.Equal(t, "CLO", rt.Resolve(Request{Filename: "fin_legal_memo.docx"}).Destination)
	assert.Equal(t, "CFO", rt.Resolve(Request{Filename: "fin_q3.xlsx"}).Destination)
}

func TestResolve_OverrideOutsideSetIgnored(t *testing.T) {
	rt := NewOfficeRouter(rules.Default(), config.RoutingConfig{
		FilenameOverrides: map[string]string{"x_": "PLUTO"},
	})

	res := rt.Resolve(Request{Filename: "x_file.txt"})
	assert.Equal(t, "EXEC", res.Destination)
	assert.Equal(t, RuleDefault, res.Rule)
}

func TestResolve_SidecarDottedFunction(t *testing.T) {
	rt := NewOfficeRouter(rules.Default(), config.RoutingConfig{
		FunctionToOffice: map[string]string{"Finance": "CFO"},
	})

	res := rt.Resolve(Request{Filename: "q3.xlsx", Sidecar: &Sidecar{Function: "DDM.finance"}})
	assert.Equal(t, "CFO", res.Destination)
	assert.Equal(t, RuleFunctionMap, res.Rule)
	assert.Equal(t, snapshot.ActionRoute, res.Action)
}

func TestResolve_SidecarDirectMember(t *testing.T) {
	rt := NewOfficeRouter(rules.Default(), config.RoutingConfig{})

	res := rt.Resolve(Request{Filename: "plan.docx", Sidecar: &Sidecar{RoutedTo: "cto"}})
	assert.Equal(t, "CTO", res.Destination)
	assert.Equal(t, RuleSidecarRoute, res.Rule)
}

func TestResolve_StagePriorities(t *testing.T) {
	rt := NewStageRouter(rules.Default(), config.RoutingConfig{})

	tests := []struct {
		priority rules.Priority
		dest     string
		action   snapshot.Action
	}{
		{rules.PriorityUrgent, "ACTIVE", snapshot.ActionEscalate},
		{rules.PriorityHigh, "ACTIVE", snapshot.ActionProcess},
		{rules.PriorityMedium, "WAITING", snapshot.ActionReview},
		{rules.PriorityLow, "DONE", snapshot.ActionArchive},
	}
	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			res := rt.Resolve(Request{Filename: "f.txt", Priority: tt.priority})
			assert.Equal(t, tt.dest, res.Destination)
			assert.Equal(t, RulePriority, res.Rule)
			assert.Equal(t, tt.action, res.Action)
		})
	}

	res := rt.Resolve(Request{Filename: "f.txt"})
	assert.Equal(t, "DONE", res.Destination)
	assert.Equal(t, RuleDefault, res.Rule)
}

func TestResolve_OfficeModeIgnoresPriority(t *testing.T) {
	rt := NewOfficeRouter(rules.Default(), config.RoutingConfig{})

	res := rt.Resolve(Request{Filename: "urgent.txt", Priority: rules.PriorityUrgent})
	assert.Equal(t, "EXEC", res.Destination)
	assert.Equal(t, RuleDefault, res.Rule)
}

func TestIntake(t *testing.T) {
	rt := NewStageRouter(rules.Default(), config.RoutingConfig{})

	tests := []struct {
		name     string
		stage    string
		bucket   string
		category executor.Category
	}{
		{"report.pdf", rules.StageActive, "", executor.CategoryMoved},
		{"server.log", rules.StageArchive, rules.BucketLogs, executor.CategoryArchived},
		{"Thumbs.db", rules.StageArchive, rules.BucketBackups, executor.CategoryArchived},
		{"photo.png", rules.StageReference, "", executor.CategoryRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := rt.Intake(tt.name)
			assert.Equal(t, tt.stage, in.Stage)
			assert.Equal(t, tt.bucket, in.Bucket)
			assert.Equal(t, tt.category, in.Category)
		})
	}
}

func TestLoadSidecar(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		sc := LoadSidecar(filepath.Join(dir, "nope.navi.json"))
		assert.True(t, sc.IsEmpty())
	})

	t.Run("malformed", func(t *testing.T) {
		p := filepath.Join(dir, "bad.navi.json")
		require.NoError(t, os.WriteFile(p, []byte("{not json"), 0644))
		assert.True(t, LoadSidecar(p).IsEmpty())
	})

	t.Run("non-string values dropped", func(t *testing.T) {
		p := filepath.Join(dir, "odd.navi.json")
		require.NoError(t, os.WriteFile(p, []byte(`{"route": 7, "function": "Legal"}`), 0644))
		sc := LoadSidecar(p)
		assert.Equal(t, "", sc.Route)
		assert.Equal(t, "Legal", sc.Function)
	})
}

func TestIsSidecar(t *testing.T) {
	assert.True(t, IsSidecar("a.pdf.navi.json"))
	assert.True(t, IsSidecar("a.pdf.META.json"))
	assert.False(t, IsSidecar("a.json"))
	assert.Equal(t, "/x/a.pdf.navi.json", SidecarPath("/x/a.pdf"))
}
