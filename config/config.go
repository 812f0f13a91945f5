// Package config provides CLI configuration management for the mailroom command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags,
// plus the per-root JSON files (processor and routing configuration) read once per run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultRoot            = "~/NAVI"
	DefaultOutputFormat    = OutputFormatText
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "auto"
	DefaultStatusAddr      = "127.0.0.1:8765"
	DefaultWatchDebounce   = 2 * time.Second
	DefaultMaxContentBytes = 1 << 20
	DefaultConfigDir       = ".mailroom"
	DefaultConfigFile      = "config.yaml"
)

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// Root is the directory every stage, office and snapshot path is derived from.
	// Supports ~ for home directory expansion.
	Root string `yaml:"root"`

	// ArchiveDir overrides <root>/ARCHIVE.
	ArchiveDir string `yaml:"archive_dir,omitempty"`

	// ReferenceDir overrides <root>/REFERENCE.
	ReferenceDir string `yaml:"reference_dir,omitempty"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogFormat selects auto, json or console log output.
	LogFormat string `yaml:"log_format"`

	// StatusAddr is the listen address of the read-only status server.
	StatusAddr string `yaml:"status_addr"`

	// WatchDebounce is the quiet period the watcher waits for before a run.
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// MaxContentBytes caps how much of a file the classifier reads.
	MaxContentBytes int64 `yaml:"max_content_bytes"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Root:            DefaultRoot,
		OutputFormat:    DefaultOutputFormat,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		StatusAddr:      DefaultStatusAddr,
		WatchDebounce:   DefaultWatchDebounce,
		MaxContentBytes: DefaultMaxContentBytes,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $MAILROOM_CONFIG_DIR if set, otherwise ~/.mailroom
func ConfigDir() (string, error) {
	if dir := os.Getenv("MAILROOM_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.mailroom/config.yaml or $MAILROOM_CONFIG_DIR/config.yaml)
// 3. Environment variables (MAILROOM_ROOT, MAILROOM_OUTPUT_FORMAT, ...)
// Command-line flags are applied on top by the caller.
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// configFile mirrors CLIConfig with the debounce as a duration string.
type configFile struct {
	Root            string       `yaml:"root"`
	ArchiveDir      string       `yaml:"archive_dir,omitempty"`
	ReferenceDir    string       `yaml:"reference_dir,omitempty"`
	OutputFormat    OutputFormat `yaml:"output_format"`
	LogLevel        string       `yaml:"log_level,omitempty"`
	LogFormat       string       `yaml:"log_format,omitempty"`
	StatusAddr      string       `yaml:"status_addr,omitempty"`
	WatchDebounce   string       `yaml:"watch_debounce,omitempty"`
	MaxContentBytes int64        `yaml:"max_content_bytes,omitempty"`
	Debug           bool         `yaml:"debug,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.Root != "" {
		cfg.Root = fileCfg.Root
	}
	if fileCfg.ArchiveDir != "" {
		cfg.ArchiveDir = fileCfg.ArchiveDir
	}
	if fileCfg.ReferenceDir != "" {
		cfg.ReferenceDir = fileCfg.ReferenceDir
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogFormat != "" {
		cfg.LogFormat = fileCfg.LogFormat
	}
	if fileCfg.StatusAddr != "" {
		cfg.StatusAddr = fileCfg.StatusAddr
	}
	if fileCfg.WatchDebounce != "" {
		d, err := time.ParseDuration(fileCfg.WatchDebounce)
		if err != nil {
			return fmt.Errorf("parsing watch_debounce: %w", err)
		}
		cfg.WatchDebounce = d
	}
	if fileCfg.MaxContentBytes != 0 {
		cfg.MaxContentBytes = fileCfg.MaxContentBytes
	}
	cfg.Debug = fileCfg.Debug

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("MAILROOM_ROOT"); v != "" {
		cfg.Root = v
	}

	if v := os.Getenv("MAILROOM_ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}

	if v := os.Getenv("MAILROOM_REFERENCE_DIR"); v != "" {
		cfg.ReferenceDir = v
	}

	if v := os.Getenv("MAILROOM_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("MAILROOM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("MAILROOM_LOG_JSON"); v == "true" || v == "1" {
		cfg.LogFormat = "json"
	}

	if v := os.Getenv("MAILROOM_STATUS_ADDR"); v != "" {
		cfg.StatusAddr = v
	}

	if v := os.Getenv("MAILROOM_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WatchDebounce = d
		}
	}

	if v := os.Getenv("MAILROOM_MAX_CONTENT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxContentBytes = n
		}
	}

	if v := os.Getenv("MAILROOM_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("root is required")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	switch c.LogFormat {
	case "auto", "json", "console":
	default:
		return fmt.Errorf("invalid log_format: %q (must be auto, json, or console)", c.LogFormat)
	}

	if c.WatchDebounce <= 0 {
		return fmt.Errorf("watch_debounce must be positive")
	}

	if c.MaxContentBytes <= 0 {
		return fmt.Errorf("max_content_bytes must be positive")
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// ResolvedRoot returns Root with ~ expanded.
func (c *CLIConfig) ResolvedRoot() (string, error) {
	return ExpandPath(c.Root)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	fileCfg := configFile{
		Root:            cfg.Root,
		ArchiveDir:      cfg.ArchiveDir,
		ReferenceDir:    cfg.ReferenceDir,
		OutputFormat:    cfg.OutputFormat,
		LogLevel:        cfg.LogLevel,
		LogFormat:       cfg.LogFormat,
		StatusAddr:      cfg.StatusAddr,
		WatchDebounce:   cfg.WatchDebounce.String(),
		MaxContentBytes: cfg.MaxContentBytes,
		Debug:           cfg.Debug,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
