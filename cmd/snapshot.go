package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/pipeline"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// NewSnapshotCommand creates the snapshot command with all subcommands.
func NewSnapshotCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultCommandDeps()
	}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create, inspect and review snapshots",
		Long: `Create, inspect and review snapshots.

A snapshot records one batch of intake work. Inbox snapshots list the files
in the inbox at creation time; collection snapshots describe one batch moved
out of COLLECTION/INCOMING. Snapshots only move forward through their
lifecycle and are never deleted.

Lifecycle:
  unprocessed -> processed -> air_processed -> reviewed
  unreviewed  -> reviewed   (collection batches)

Examples:
  # Snapshot the current inbox
  mailroom snapshot create

  # List inbox snapshots, newest first
  mailroom snapshot list

  # List collection batches as JSON
  mailroom snapshot list --source collection --output json

  # Show one snapshot
  mailroom snapshot show 2025-11-02T09-00-00-000Z

  # Record a reviewer decision
  mailroom snapshot review 2025-11-02_bulk_import_001 --source collection --decision approve --reviewer jb`,
		Aliases: []string{"snapshots"},
	}

	cmd.AddCommand(newSnapshotCreateCommand(deps))
	cmd.AddCommand(newSnapshotListCommand(deps))
	cmd.AddCommand(newSnapshotShowCommand(deps))
	cmd.AddCommand(newSnapshotReviewCommand(deps))

	return cmd
}

// newSnapshotCreateCommand creates the 'snapshot create' subcommand.
func newSnapshotCreateCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Snapshot the current inbox",
		Long: `Record the files currently in the inbox as a new unprocessed snapshot.

An empty inbox creates nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps.pipelineDeps(nil)
			if err != nil {
				return err
			}
			snap, err := pipeline.CreateInboxSnapshot(cmd.Context(), d)
			if mrerrors.IsNothingToDo(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "Inbox is empty, no snapshot created.")
				return nil
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), deps.outputFormat(), snap, func(w io.Writer) error {
				fmt.Fprintf(w, "Created snapshot %s (%d items)\n", snap.ID, len(snap.Items))
				return nil
			})
		},
	}
}

// snapshotSummary is one row of 'snapshot list'.
type snapshotSummary struct {
	ID        string          `json:"id"`
	Source    snapshot.Source `json:"source"`
	Status    snapshot.Status `json:"status"`
	Items     int             `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

// newSnapshotListCommand creates the 'snapshot list' subcommand.
func newSnapshotListCommand(deps *CommandDeps) *cobra.Command {
	var source string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.snapshotStore(source)
			if err != nil {
				return err
			}
			ids, err := store.List()
			if err != nil {
				return err
			}
			if limit > 0 && len(ids) > limit {
				ids = ids[:limit]
			}

			rows := make([]snapshotSummary, 0, len(ids))
			for _, id := range ids {
				s, err := store.Load(id)
				if err != nil {
					deps.Logger.Warn("Skipping unreadable snapshot", logging.F("snapshot_id", id), logging.Err(err))
					continue
				}
				rows = append(rows, snapshotSummary{
					ID:        s.ID,
					Source:    s.Source,
					Status:    s.Status,
					Items:     len(s.Items),
					CreatedAt: s.CreatedAt,
				})
			}

			return render(cmd.OutOrStdout(), deps.outputFormat(), rows, func(w io.Writer) error {
				if len(rows) == 0 {
					fmt.Fprintf(w, "No %s snapshots.\n", source)
					return nil
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tITEMS\tCREATED")
				fmt.Fprintln(tw, "--\t------\t-----\t-------")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Status, r.Items, r.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", layout.SourceInbox, "Snapshot source: inbox or collection")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n snapshots (0 = all)")
	return cmd
}

// newSnapshotShowCommand creates the 'snapshot show' subcommand.
func newSnapshotShowCommand(deps *CommandDeps) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one snapshot",
		Long: `Show one snapshot with its items and, once triaged, the decisions.

Use "latest" as the id for the newest snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.snapshotStore(source)
			if err != nil {
				return err
			}
			var snap *snapshot.Snapshot
			if args[0] == "latest" {
				snap, err = store.Latest()
			} else {
				snap, err = store.Load(args[0])
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), deps.outputFormat(), snap, func(w io.Writer) error {
				printSnapshot(w, snap)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", layout.SourceInbox, "Snapshot source: inbox or collection")
	return cmd
}

// newSnapshotReviewCommand creates the 'snapshot review' subcommand.
func newSnapshotReviewCommand(deps *CommandDeps) *cobra.Command {
	var (
		source   string
		decision string
		reviewer string
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Record a reviewer decision on a snapshot",
		Long: `Record a reviewer decision on a snapshot and advance it to reviewed.

This is the only way human_decision is ever written. A snapshot can be
reviewed once, from processed, air_processed or unreviewed.

Decisions: approve, reject, hold, promote`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.snapshotStore(source)
			if err != nil {
				return err
			}
			snap, err := store.Load(args[0])
			if err != nil {
				return err
			}
			hd := snapshot.HumanDecision{Decision: decision, Reviewer: reviewer, Notes: notes}
			if err := snap.Review(hd, deps.now()); err != nil {
				return err
			}
			if err := store.Save(snap); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), deps.outputFormat(), snap, func(w io.Writer) error {
				fmt.Fprintf(w, "Recorded %s on %s (status: %s)\n", snap.HumanDecision.Decision, snap.ID, snap.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", layout.SourceInbox, "Snapshot source: inbox or collection")
	cmd.Flags().StringVar(&decision, "decision", "", "Reviewer decision: approve, reject, hold, promote (required)")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer name")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func (d *CommandDeps) snapshotStore(source string) (*snapshot.Store, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source != layout.SourceInbox && source != layout.SourceCollection {
		return nil, fmt.Errorf("%w: --source must be %s or %s, got %q",
			mrerrors.ErrValidation, layout.SourceInbox, layout.SourceCollection, source)
	}
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, err
	}
	l, err := LayoutFor(cfg)
	if err != nil {
		return nil, err
	}
	return snapshot.NewStore(l.Snapshots(source), d.logger(cfg)), nil
}

func printSnapshot(w io.Writer, s *snapshot.Snapshot) {
	fmt.Fprintf(w, "Snapshot: %s\n", s.ID)
	fmt.Fprintf(w, "  Source:   %s\n", s.Source)
	fmt.Fprintf(w, "  Status:   %s\n", s.Status)
	fmt.Fprintf(w, "  Created:  %s\n", s.CreatedAt.Format(time.RFC3339))
	if s.ProcessedAt != nil {
		fmt.Fprintf(w, "  Processed: %s\n", s.ProcessedAt.Format(time.RFC3339))
	}
	if s.AirProcessedAt != nil {
		fmt.Fprintf(w, "  Triaged:  %s\n", s.AirProcessedAt.Format(time.RFC3339))
	}
	if s.ReviewedAt != nil {
		fmt.Fprintf(w, "  Reviewed: %s\n", s.ReviewedAt.Format(time.RFC3339))
	}

	if s.CollectionMeta != nil {
		m := s.CollectionMeta
		fmt.Fprintf(w, "\nBatch: %d files, %.2f MB\n", m.FileCount, m.TotalSizeMB)
		fmt.Fprintf(w, "  Executables: %t  Archives: %t  Possible duplicates: %t\n",
			m.Flags.ContainsExecutables, m.Flags.ContainsArchives, m.Flags.PossibleDuplicates)
		for _, n := range m.AirNotes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}

	fmt.Fprintf(w, "\nItems (%d):\n", len(s.Items))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tTYPE\tSIZE\tPRIORITY\tDESTINATION\tACTION")
	for _, it := range s.Items {
		priority, dest, action := "-", "-", "-"
		if it.Decision != nil {
			priority = string(it.Decision.Priority)
			dest = it.Decision.Destination
			action = string(it.Decision.Action)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\t%s\t%s\n", it.Name, valueOrDash(it.Type), it.Size, priority, dest, action)
	}
	tw.Flush()

	if s.AirOutput != nil && len(s.AirOutput.NextSteps) > 0 {
		fmt.Fprintln(w, "\nNext steps:")
		for _, step := range s.AirOutput.NextSteps {
			fmt.Fprintf(w, "  - %s\n", step)
		}
	}

	if s.HumanDecision != nil {
		fmt.Fprintf(w, "\nHuman decision: %s", s.HumanDecision.Decision)
		if s.HumanDecision.Reviewer != "" {
			fmt.Fprintf(w, " by %s", s.HumanDecision.Reviewer)
		}
		fmt.Fprintln(w)
		if s.HumanDecision.Notes != "" {
			fmt.Fprintf(w, "  %s\n", s.HumanDecision.Notes)
		}
	}
}
