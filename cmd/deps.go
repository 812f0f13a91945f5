// Package cmd provides CLI commands for the mailroom tool.
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/mailroom/config"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/pipeline"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

// CommandDeps holds the dependencies shared by the mailroom commands.
type CommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)

	// Logger defaults to a zerolog logger built from the config.
	Logger logging.Logger

	// Registry backs Metrics and the /metrics endpoint of the status server.
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer

	Now func() time.Time
}

// DefaultCommandDeps returns the default dependencies for production use.
func DefaultCommandDeps() *CommandDeps {
	return &CommandDeps{
		LoadConfig: config.LoadConfig,
		Tracer:     observability.NewTracer(),
	}
}

func (d *CommandDeps) loadConfig() (*config.CLIConfig, error) {
	if d.Config != nil {
		return d.Config, nil
	}
	if d.LoadConfig == nil {
		d.LoadConfig = config.LoadConfig
	}
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	d.Config = cfg
	return cfg, nil
}

func (d *CommandDeps) logger(cfg *config.CLIConfig) logging.Logger {
	if d.Logger == nil {
		d.Logger = NewLogger(cfg, os.Stderr)
	}
	return d.Logger
}

func (d *CommandDeps) metrics() *observability.Metrics {
	if d.Metrics == nil {
		if d.Registry == nil {
			d.Registry = prometheus.NewRegistry()
		}
		d.Metrics = observability.NewMetrics(d.Registry)
	}
	return d.Metrics
}

func (d *CommandDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewLogger builds the process logger from the CLI config.
func NewLogger(cfg *config.CLIConfig, out io.Writer) logging.Logger {
	level := logging.Level(cfg.LogLevel)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:     level,
		Component: "mailroom",
		Format:    logging.Format(cfg.LogFormat),
		Output:    out,
	})
}

// LayoutFor derives the directory layout from the config.
func LayoutFor(cfg *config.CLIConfig) (layout.Layout, error) {
	root, err := cfg.ResolvedRoot()
	if err != nil {
		return layout.Layout{}, fmt.Errorf("resolving root: %w", err)
	}
	archive, err := config.ExpandPath(cfg.ArchiveDir)
	if err != nil {
		return layout.Layout{}, fmt.Errorf("resolving archive_dir: %w", err)
	}
	reference, err := config.ExpandPath(cfg.ReferenceDir)
	if err != nil {
		return layout.Layout{}, fmt.Errorf("resolving reference_dir: %w", err)
	}
	return layout.New(root).WithArchive(archive).WithReference(reference), nil
}

// runFlags are the --dry-run/--live switches shared by mutating commands.
type runFlags struct {
	dryRun bool
	live   bool
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Plan moves without touching the filesystem (overrides processor_config.json)")
	cmd.Flags().BoolVar(&f.live, "live", false, "Apply moves (overrides processor_config.json)")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "live")
}

// resolve decides the run mode. Flags win; otherwise processor_config.json
// decides, and anything short of an explicit "dry_run": false is a dry run.
func (f *runFlags) resolve(l layout.Layout, log logging.Logger) (bool, error) {
	if f == nil {
		return true, nil
	}
	if f.dryRun && f.live {
		return false, fmt.Errorf("%w: --dry-run and --live are mutually exclusive", mrerrors.ErrValidation)
	}
	if f.live {
		return false, nil
	}
	if f.dryRun {
		return true, nil
	}
	pc, err := config.LoadProcessorConfig(l.ProcessorConfig())
	if err != nil {
		log.Warn("Processor config unusable, defaulting to dry run",
			logging.F("path", l.ProcessorConfig()), logging.Err(err))
	}
	return pc.DryRun, nil
}

// pipelineDeps assembles the inputs of one pipeline run. Configuration is
// read once here and passed down as immutable values.
func (d *CommandDeps) pipelineDeps(f *runFlags) (pipeline.Deps, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return pipeline.Deps{}, err
	}
	l, err := LayoutFor(cfg)
	if err != nil {
		return pipeline.Deps{}, err
	}
	log := d.logger(cfg)

	dryRun, err := f.resolve(l, log)
	if err != nil {
		return pipeline.Deps{}, err
	}

	routing, err := config.LoadRoutingConfig(l.RoutingConfig())
	if err != nil {
		log.Warn("Routing config unusable, using built-in routing",
			logging.F("path", l.RoutingConfig()), logging.Err(err))
	}

	return pipeline.Deps{
		Layout:          l,
		Rules:           rules.Default(),
		Routing:         routing,
		DryRun:          dryRun,
		MaxContentBytes: cfg.MaxContentBytes,
		Logger:          log,
		Metrics:         d.metrics(),
		Tracer:          d.Tracer,
		Now:             d.Now,
	}, nil
}

// outputFormat returns the configured output format, defaulting to text.
func (d *CommandDeps) outputFormat() config.OutputFormat {
	if d.Config == nil || d.Config.OutputFormat == "" {
		return config.OutputFormatText
	}
	return d.Config.OutputFormat
}

func dryRunBanner(w io.Writer, dryRun bool) {
	if dryRun {
		fmt.Fprintln(w, "[DRY-RUN] No files were moved. Re-run with --live to apply.")
	}
}
