package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProcessorConfig(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		wantDry  bool
		wantWarn bool
	}{
		{"missing file", nil, true, false},
		{"live", strPtr(`{"dry_run": false}`), false, false},
		{"explicit dry", strPtr(`{"dry_run": true}`), true, false},
		{"key absent", strPtr(`{"other": 1}`), true, false},
		{"malformed", strPtr(`{"dry_run": fal`), true, true},
		{"wrong type", strPtr(`{"dry_run": "no"}`), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "processor_config.json")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0o644))
			}

			cfg, warn := LoadProcessorConfig(path)
			assert.Equal(t, tt.wantDry, cfg.DryRun)
			if tt.wantWarn {
				assert.Error(t, warn)
			} else {
				assert.NoError(t, warn)
			}
		})
	}
}

func TestSaveProcessorConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processor_config.json")

	require.NoError(t, SaveProcessorConfig(path, ProcessorConfig{DryRun: false}))
	cfg, err := LoadProcessorConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.DryRun)
}

func TestLoadRoutingConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is empty config", func(t *testing.T) {
		cfg, err := LoadRoutingConfig(filepath.Join(dir, "absent.json"))
		require.NoError(t, err)
		assert.Empty(t, cfg.FilenameOverrides)
		assert.Empty(t, cfg.FunctionToOffice)
	})

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "routing_config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
  "filename_overrides": {"Navi_": "CTO"},
  "function_to_office": {"finance": "CFO"}
}`), 0o644))

		cfg, err := LoadRoutingConfig(path)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"Navi_": "CTO"}, cfg.FilenameOverrides)
		assert.Equal(t, map[string]string{"finance": "CFO"}, cfg.FunctionToOffice)
	})

	t.Run("malformed is empty config with warning", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"filename_overrides": [`), 0o644))

		cfg, err := LoadRoutingConfig(path)
		assert.Error(t, err)
		assert.Empty(t, cfg.FilenameOverrides)
	})
}

func strPtr(s string) *string { return &s }
