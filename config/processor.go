package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ProcessorConfig is the per-root switch file read by the move executor.
type ProcessorConfig struct {
	DryRun bool `json:"dry_run"`
}

// LoadProcessorConfig reads the processor config at path. The executor must
// never default to destructive behavior: a missing file, a malformed file,
// or a file without the dry_run key all yield DryRun=true. The returned
// warning is non-nil only for a file that exists but could not be used.
func LoadProcessorConfig(path string) (ProcessorConfig, error) {
	cfg := ProcessorConfig{DryRun: true}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("could not load processor config: %w", err)
	}

	var raw struct {
		DryRun *bool `json:"dry_run"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("could not load processor config: %w", err)
	}
	if raw.DryRun != nil {
		cfg.DryRun = *raw.DryRun
	}
	return cfg, nil
}

// SaveProcessorConfig writes the processor config as indented JSON.
func SaveProcessorConfig(path string, cfg ProcessorConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling processor config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
