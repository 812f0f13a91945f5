package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/mailroom/config"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

// NewLayoutCommand creates the layout command.
func NewLayoutCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultCommandDeps()
	}

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Create or inspect the directory layout under the root",
		Long: `Create or inspect the directory layout under the root.

Every path the pipelines use is derived from one root:
  inbox/  ACTIVE/  WAITING/  DONE/  ARCHIVE/<bucket>/  REFERENCE/
  snapshots/{inbox,collection}/  processed/  packages/  config/
  offices/<OFFICE>/inbox/
  COLLECTION/{INCOMING,BATCHES,REVIEW,HOLD,TRASH_CANDIDATE,logs}/

Examples:
  mailroom layout init
  mailroom layout show --root /srv/navi`,
	}

	cmd.AddCommand(newLayoutInitCommand(deps))
	cmd.AddCommand(newLayoutShowCommand(deps))

	return cmd
}

// newLayoutInitCommand creates the 'layout init' subcommand.
func newLayoutInitCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the directory layout (idempotent)",
		Long: `Create every directory of the layout that does not exist yet, and a
processor_config.json with "dry_run": true when none exists.

A file sitting where a directory belongs aborts with exit code 2 before
anything is created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.loadConfig()
			if err != nil {
				return err
			}
			l, err := LayoutFor(cfg)
			if err != nil {
				return err
			}

			created, err := l.Init(rules.Default())
			if err != nil {
				return err
			}

			wroteConfig := false
			if _, err := os.Stat(l.ProcessorConfig()); os.IsNotExist(err) {
				if err := config.SaveProcessorConfig(l.ProcessorConfig(), config.ProcessorConfig{DryRun: true}); err != nil {
					return fmt.Errorf("writing processor config: %w", err)
				}
				wroteConfig = true
			}

			out := cmd.OutOrStdout()
			if len(created) == 0 {
				fmt.Fprintf(out, "Layout under %s is complete.\n", l.Root)
			} else {
				fmt.Fprintf(out, "Created %d directories under %s:\n", len(created), l.Root)
				for _, d := range created {
					fmt.Fprintf(out, "  %s\n", d)
				}
			}
			if wroteConfig {
				fmt.Fprintf(out, "Wrote %s (dry_run: true)\n", l.ProcessorConfig())
			}
			return nil
		},
	}
}

// layoutEntry is one directory of 'layout show'.
type layoutEntry struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// newLayoutShowCommand creates the 'layout show' subcommand.
func newLayoutShowCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List the layout directories and whether they exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.loadConfig()
			if err != nil {
				return err
			}
			l, err := LayoutFor(cfg)
			if err != nil {
				return err
			}

			entries := layoutEntries(l)
			return render(cmd.OutOrStdout(), deps.outputFormat(), entries, func(w io.Writer) error {
				for _, e := range entries {
					mark := "ok"
					if !e.Exists {
						mark = "missing"
					}
					fmt.Fprintf(w, "%-8s %s\n", mark, e.Path)
				}
				return nil
			})
		},
	}
}

func layoutEntries(l layout.Layout) []layoutEntry {
	dirs := l.Dirs(rules.Default())
	entries := make([]layoutEntry, 0, len(dirs))
	for _, d := range dirs {
		info, err := os.Stat(d)
		entries = append(entries, layoutEntry{Path: d, Exists: err == nil && info.IsDir()})
	}
	return entries
}
