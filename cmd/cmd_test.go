package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/mailroom/config"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
)

var testNow = time.Date(2025, 11, 2, 9, 0, 0, 0, time.UTC)

// testDeps returns deps rooted at a fresh temp dir with a fixed clock.
func testDeps(t *testing.T) (*CommandDeps, layout.Layout) {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Root = root

	deps := &CommandDeps{
		Config: cfg,
		LoadConfig: func() (*config.CLIConfig, error) {
			return cfg, nil
		},
		Logger: logging.NewNopLogger(),
		Now:    func() time.Time { return testNow },
	}
	return deps, layout.New(root)
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func subcommandNames(cmd *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	return names
}

func TestCommandConstructors(t *testing.T) {
	tests := []struct {
		name        string
		cmd         *cobra.Command
		use         string
		subcommands []string
	}{
		{"snapshot", NewSnapshotCommand(nil), "snapshot", []string{"create", "list", "show", "review"}},
		{"run", NewRunCommand(nil), "run", nil},
		{"triage", NewTriageCommand(nil), "triage", nil},
		{"offices", NewOfficesCommand(nil), "offices", []string{"route", "deliver"}},
		{"collect", NewCollectCommand(nil), "collect", []string{"scan", "status"}},
		{"classify", NewClassifyCommand(nil), "classify <file>...", nil},
		{"watch", NewWatchCommand(nil), "watch", nil},
		{"status", NewStatusCommand(nil), "status", nil},
		{"layout", NewLayoutCommand(nil), "layout", []string{"init", "show"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			names := subcommandNames(tt.cmd)
			assert.Len(t, names, len(tt.subcommands))
			for _, sub := range tt.subcommands {
				assert.True(t, names[sub], "missing subcommand %s", sub)
			}
		})
	}
}

func TestMutatingCommandsHaveRunFlags(t *testing.T) {
	for _, cmd := range []*cobra.Command{
		NewRunCommand(nil),
		NewTriageCommand(nil),
		NewWatchCommand(nil),
	} {
		assert.NotNil(t, cmd.Flags().Lookup("dry-run"), cmd.Name())
		assert.NotNil(t, cmd.Flags().Lookup("live"), cmd.Name())
	}
}

func TestArgsValidation(t *testing.T) {
	show := newSnapshotShowCommand(DefaultCommandDeps())
	assert.Error(t, show.Args(show, []string{}))
	assert.NoError(t, show.Args(show, []string{"latest"}))
	assert.Error(t, show.Args(show, []string{"a", "b"}))

	classify := NewClassifyCommand(nil)
	assert.Error(t, classify.Args(classify, []string{}))
	assert.NoError(t, classify.Args(classify, []string{"a.pdf", "b.pdf"}))

	run := NewRunCommand(nil)
	assert.Error(t, run.Args(run, []string{"extra"}))
}

func TestRunFlagsResolve(t *testing.T) {
	_, l := testDeps(t)
	log := logging.NewNopLogger()

	t.Run("no config is a dry run", func(t *testing.T) {
		dry, err := (&runFlags{}).resolve(l, log)
		require.NoError(t, err)
		assert.True(t, dry)
	})

	t.Run("nil flags are a dry run", func(t *testing.T) {
		var f *runFlags
		dry, err := f.resolve(l, log)
		require.NoError(t, err)
		assert.True(t, dry)
	})

	t.Run("config can go live", func(t *testing.T) {
		require.NoError(t, config.SaveProcessorConfig(l.ProcessorConfig(), config.ProcessorConfig{DryRun: false}))
		dry, err := (&runFlags{}).resolve(l, log)
		require.NoError(t, err)
		assert.False(t, dry)

		dry, err = (&runFlags{dryRun: true}).resolve(l, log)
		require.NoError(t, err)
		assert.True(t, dry, "--dry-run overrides the file")
	})

	t.Run("malformed config is a dry run", func(t *testing.T) {
		writeFile(t, l.ProcessorConfig(), "{not json")
		dry, err := (&runFlags{}).resolve(l, log)
		require.NoError(t, err)
		assert.True(t, dry)

		dry, err = (&runFlags{live: true}).resolve(l, log)
		require.NoError(t, err)
		assert.False(t, dry, "--live overrides the file")
	})

	t.Run("both flags", func(t *testing.T) {
		_, err := (&runFlags{dryRun: true, live: true}).resolve(l, log)
		assert.Error(t, err)
	})
}

func TestLayoutFor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Root = "/srv/navi"
	cfg.ArchiveDir = "/mnt/archive"

	l, err := LayoutFor(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/srv/navi", l.Root)
	assert.Equal(t, "/mnt/archive", l.ArchiveDir)
	assert.Equal(t, filepath.Join("/srv/navi", "REFERENCE"), l.ReferenceDir)
}

func TestOutputYAMLUsesJSONKeys(t *testing.T) {
	var buf bytes.Buffer
	v := snapshotSummary{ID: "abc", Status: "processed", Items: 2, CreatedAt: testNow}
	require.NoError(t, render(&buf, config.OutputFormatYAML, v, nil))

	out := buf.String()
	assert.Contains(t, out, "id: abc")
	assert.Contains(t, out, "status: processed")
	assert.Contains(t, out, "created_at:")
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	called := false
	err := render(&buf, config.OutputFormatText, nil, func(w io.Writer) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
