// Package main provides the mailroom CLI entry point.
// mailroom files the contents of a single root directory: it snapshots the
// inbox, routes and triages what it finds, and keeps the offices and the
// bulk-import collection in order.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/mailroom/cmd"
	"github.com/otherjamesbrown/mailroom/config"
	"github.com/otherjamesbrown/mailroom/pkg/buildinfo"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
)

// Global flags and state.
var (
	rootDir      string
	outputFormat string
	debug        bool

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig

	// deps is shared by every subcommand; PersistentPreRunE fills in the config.
	deps = cmd.DefaultCommandDeps()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mailroom",
	Short: "mailroom - file an inbox into stages, offices and archives",
	Long: `mailroom files the contents of one root directory (default ~/NAVI).

Work arrives in inbox/ and is frozen into a snapshot before anything moves.
A run routes every snapshot item into ACTIVE, WAITING, DONE, REFERENCE or an
ARCHIVE bucket. Triage ranks items by urgency, offices route processed files
to their owners, and collect sorts bulk imports into dated batches.

Every mutating command is a dry run unless --live is given or
processor_config.json says "dry_run": false.

COMMON WORKFLOWS:
  First use:        mailroom layout init  →  mailroom status
  File the inbox:   mailroom snapshot create  →  mailroom run  →  mailroom run --live
  Prioritise:       mailroom triage --live
  Offices:          mailroom offices route --live  →  mailroom offices deliver --live
  Bulk imports:     mailroom collect scan --live  →  mailroom collect status
  Hands off:        mailroom watch --live --serve

DISCOVERY:
  mailroom <command> --help   Subcommands, flags, and examples for any command
  mailroom status             Counts per stage and office, next steps`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if c.Name() == "version" || c.Name() == "help" || c.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		// Override with command-line flags.
		if rootDir != "" {
			cfg.Root = rootDir
		}
		if outputFormat != "" {
			format := config.OutputFormat(outputFormat)
			if !format.IsValid() {
				return fmt.Errorf("%w: invalid output format %q (must be text, json, or yaml)", mrerrors.ErrValidation, outputFormat)
			}
			cfg.OutputFormat = format
		}
		if debug {
			cfg.Debug = true
		}

		deps.Config = cfg
		return nil
	},
}

// Version command flags.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the mailroom CLI.

Examples:
  mailroom version
  mailroom version --output-json`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get("mailroom")
		out := c.OutOrStdout()
		if versionOutputJSON || outputFormat == string(config.OutputFormatJSON) {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintf(out, "mailroom %s\n", buildinfo.String())
		fmt.Fprintf(out, "  Go:       %s\n", info.GoVersion)
		fmt.Fprintf(out, "  Platform: %s\n", info.Platform)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the mailroom CLI configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current CLI configuration values, after environment and flag overrides.`,
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		configPath, _ := config.ConfigPath()
		out := c.OutOrStdout()

		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:       %s\n", configPath)
		fmt.Fprintf(out, "  Root:              %s\n", cfg.Root)
		fmt.Fprintf(out, "  Archive dir:       %s\n", valueOrDefault(cfg.ArchiveDir, "(<root>/ARCHIVE)"))
		fmt.Fprintf(out, "  Reference dir:     %s\n", valueOrDefault(cfg.ReferenceDir, "(<root>/REFERENCE)"))
		fmt.Fprintf(out, "  Output format:     %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "  Log level:         %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "  Log format:        %s\n", cfg.LogFormat)
		fmt.Fprintf(out, "  Status address:    %s\n", cfg.StatusAddr)
		fmt.Fprintf(out, "  Watch debounce:    %s\n", cfg.WatchDebounce)
		fmt.Fprintf(out, "  Max content bytes: %d\n", cfg.MaxContentBytes)
		fmt.Fprintf(out, "  Debug:             %t\n", cfg.Debug)

		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}
		out := c.OutOrStdout()

		// Check if config already exists.
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'mailroom config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Root:           %s\n", defaultCfg.Root)
		fmt.Fprintf(out, "  Output format:  %s\n", defaultCfg.OutputFormat)
		fmt.Fprintf(out, "  Watch debounce: %s\n", defaultCfg.WatchDebounce)

		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  root               - Root directory (supports ~)
  archive_dir        - Archive directory override (supports ~)
  reference_dir      - Reference directory override (supports ~)
  output_format      - Default output format (text, json, yaml)
  log_level          - Minimum log level (debug, info, warn, error)
  log_format         - Log output (auto, json, console)
  status_addr        - Listen address of the status server (host:port)
  watch_debounce     - Quiet period before a watch run (e.g., 2s, 1m)
  max_content_bytes  - Bytes of each file the classifier reads
  debug              - Enable debug mode (true/false)

Examples:
  mailroom config set root ~/NAVI
  mailroom config set output_format json
  mailroom config set watch_debounce 10s`,
	Args: cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		// Flag overrides are not persisted.
		currentCfg, err := config.LoadConfig()
		if err != nil {
			currentCfg = config.DefaultConfig()
		}

		if err := setConfigValue(currentCfg, key, value); err != nil {
			return err
		}
		if err := currentCfg.Validate(); err != nil {
			return fmt.Errorf("%w: %v", mrerrors.ErrValidation, err)
		}

		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(c.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// setConfigValue applies one key of 'config set'.
func setConfigValue(c *config.CLIConfig, key, value string) error {
	switch key {
	case "root":
		if _, err := config.ExpandPath(value); err != nil {
			return fmt.Errorf("invalid root: %w", err)
		}
		c.Root = value
	case "archive_dir":
		c.ArchiveDir = value
	case "reference_dir":
		c.ReferenceDir = value
	case "output_format":
		format := config.OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		c.OutputFormat = format
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	case "status_addr":
		c.StatusAddr = value
	case "watch_debounce":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid watch_debounce value: %w", err)
		}
		c.WatchDebounce = d
	case "max_content_bytes":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid max_content_bytes value: %w", err)
		}
		c.MaxContentBytes = n
	case "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid debug value: %s (must be true or false)", value)
		}
		c.Debug = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for mailroom.

To load completions:

Bash:
  $ source <(mailroom completion bash)

Zsh:
  $ mailroom completion zsh > "${fpath[1]}/_mailroom"

Fish:
  $ mailroom completion fish | source

PowerShell:
  PS> mailroom completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(c *cobra.Command, args []string) error {
		out := c.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Root directory (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "pipeline", Title: "Pipelines:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
		&cobra.Group{ID: "setup", Title: "Setup & Configuration:"},
	)

	// Pipelines
	snapshotCmd := cmd.NewSnapshotCommand(deps)
	snapshotCmd.GroupID = "pipeline"
	rootCmd.AddCommand(snapshotCmd)

	runCmd := cmd.NewRunCommand(deps)
	runCmd.GroupID = "pipeline"
	rootCmd.AddCommand(runCmd)

	triageCmd := cmd.NewTriageCommand(deps)
	triageCmd.GroupID = "pipeline"
	rootCmd.AddCommand(triageCmd)

	officesCmd := cmd.NewOfficesCommand(deps)
	officesCmd.GroupID = "pipeline"
	rootCmd.AddCommand(officesCmd)

	collectCmd := cmd.NewCollectCommand(deps)
	collectCmd.GroupID = "pipeline"
	rootCmd.AddCommand(collectCmd)

	watchCmd := cmd.NewWatchCommand(deps)
	watchCmd.GroupID = "pipeline"
	rootCmd.AddCommand(watchCmd)

	// Inspection
	classifyCmd := cmd.NewClassifyCommand(deps)
	classifyCmd.GroupID = "inspect"
	rootCmd.AddCommand(classifyCmd)

	statusCmd := cmd.NewStatusCommand(deps)
	statusCmd.GroupID = "inspect"
	rootCmd.AddCommand(statusCmd)

	// Setup
	layoutCmd := cmd.NewLayoutCommand(deps)
	layoutCmd.GroupID = "setup"
	rootCmd.AddCommand(layoutCmd)

	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)

	// Config subcommands.
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func main() {
	// Cancel the context on SIGINT/SIGTERM so watch and the status server
	// shut down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ie *mrerrors.InvariantError
		if errors.As(err, &ie) {
			fmt.Fprintf(os.Stderr, "\n%s\n", ie.Help())
		}
	}
	stop()
	os.Exit(mrerrors.ExitCode(err))
}
