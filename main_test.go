package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/otherjamesbrown/mailroom/config"
)

func TestVersionCommand(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}

	if versionCmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", versionCmd.Use)
	}

	if versionCmd.Short != "Print version information" {
		t.Errorf("Unexpected Short: %s", versionCmd.Short)
	}

	if versionCmd.Flags().Lookup("output-json") == nil {
		t.Error("--output-json flag not found on version command")
	}
}

func TestVersionOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionOutputJSON = true
	defer func() { versionOutputJSON = false }()

	if err := versionCmd.RunE(versionCmd, []string{}); err != nil {
		t.Fatalf("version --output-json failed: %v", err)
	}

	var info map[string]string
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, buf.String())
	}
	if info["component"] != "mailroom" {
		t.Errorf("component = %q, want mailroom", info["component"])
	}
	if info["go_version"] == "" {
		t.Error("go_version is empty")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := []string{
		"snapshot", "run", "triage", "offices", "collect", "watch",
		"classify", "status", "layout", "config", "completion", "version",
	}

	registered := make(map[string]string)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = c.GroupID
	}

	for _, name := range want {
		group, ok := registered[name]
		if !ok {
			t.Errorf("subcommand %q not registered", name)
			continue
		}
		if group == "" {
			t.Errorf("subcommand %q has no group", name)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"root", "output", "debug"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s persistent flag not found", name)
		}
	}
}

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		check   func(*config.CLIConfig) bool
		wantErr bool
	}{
		{"root", "/srv/navi", func(c *config.CLIConfig) bool { return c.Root == "/srv/navi" }, false},
		{"archive_dir", "/mnt/archive", func(c *config.CLIConfig) bool { return c.ArchiveDir == "/mnt/archive" }, false},
		{"output_format", "json", func(c *config.CLIConfig) bool { return c.OutputFormat == config.OutputFormatJSON }, false},
		{"output_format", "xml", nil, true},
		{"watch_debounce", "10s", func(c *config.CLIConfig) bool { return c.WatchDebounce == 10*time.Second }, false},
		{"watch_debounce", "soon", nil, true},
		{"max_content_bytes", "4096", func(c *config.CLIConfig) bool { return c.MaxContentBytes == 4096 }, false},
		{"max_content_bytes", "lots", nil, true},
		{"debug", "true", func(c *config.CLIConfig) bool { return c.Debug }, false},
		{"debug", "maybe", nil, true},
		{"server_address", "localhost:1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			c := config.DefaultConfig()
			err := setConfigValue(c, tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %s=%s", tt.key, tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(c) {
				t.Errorf("%s=%s was not applied", tt.key, tt.value)
			}
		})
	}
}

func TestValueOrDefault(t *testing.T) {
	if got := valueOrDefault("", "fallback"); got != "fallback" {
		t.Errorf("valueOrDefault(\"\") = %q", got)
	}
	if got := valueOrDefault("set", "fallback"); got != "set" {
		t.Errorf("valueOrDefault(\"set\") = %q", got)
	}
}
