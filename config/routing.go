package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// RoutingConfig holds the office routing overrides for one run.
type RoutingConfig struct {
	// FilenameOverrides maps a filename prefix to an office.
	FilenameOverrides map[string]string `json:"filename_overrides"`

	// FunctionToOffice maps a logical function name to an office.
	FunctionToOffice map[string]string `json:"function_to_office"`
}

// LoadRoutingConfig reads the routing config at path. A missing file is an
// empty configuration. A malformed file is also an empty configuration, with
// the parse error returned as a warning for the caller to log.
func LoadRoutingConfig(path string) (RoutingConfig, error) {
	var cfg RoutingConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("could not load routing config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return RoutingConfig{}, fmt.Errorf("could not load routing config: %w", err)
	}
	return cfg, nil
}
