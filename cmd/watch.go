package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/pipeline"
	"github.com/otherjamesbrown/mailroom/pkg/watch"
)

// NewWatchCommand creates the watch command: snapshot and process the inbox
// whenever it settles after a change.
func NewWatchCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultCommandDeps()
	}

	var (
		flags    runFlags
		serve    bool
		addr     string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the inbox and run the mailroom pass when it changes",
		Long: `Watch the inbox and run the mailroom pass when it changes.

Create, write and rename events are debounced: once the inbox has been quiet
for the debounce period, a new inbox snapshot is created and the mailroom
pass runs on it. Runs never overlap. A blocked destination path (exit code 2)
stops the watcher; any other run failure is logged and watching continues.

With --serve the read-only status server runs alongside the watcher.

Examples:
  # Watch with the default 2s debounce, dry by default
  mailroom watch

  # Apply moves and expose /status and /metrics
  mailroom watch --live --serve

  # Longer settle time for slow copies
  mailroom watch --debounce 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps.pipelineDeps(&flags)
			if err != nil {
				return err
			}
			cfg := deps.Config
			if debounce <= 0 {
				debounce = cfg.WatchDebounce
			}

			w := watch.New(d.Layout.Inbox(), inboxHandler(d),
				watch.WithDebounce(debounce),
				watch.WithLogger(d.Logger))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return w.Run(ctx)
			})
			if serve {
				if addr == "" {
					addr = cfg.StatusAddr
				}
				srv := newStatusServer(addr, deps, d.Layout, d.Logger)
				g.Go(func() error {
					return srv.Run(ctx)
				})
			}

			err = g.Wait()
			d.Logger.Info("Watch finished", logging.F("runs", w.Runs()))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	addRunFlags(cmd, &flags)
	cmd.Flags().BoolVar(&serve, "serve", false, "Also run the read-only status server")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for --serve (default from config)")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before a run (default from config, 2s)")

	return cmd
}

// inboxHandler snapshots the inbox and runs the mailroom pass on it. An
// empty inbox surfaces as errors.ErrNothingToDo, which the watcher skips.
func inboxHandler(d pipeline.Deps) watch.Handler {
	return func(ctx context.Context) error {
		if _, err := pipeline.CreateInboxSnapshot(ctx, d); err != nil {
			return err
		}
		_, err := pipeline.NewMailroom(d).Run(ctx)
		return err
	}
}
