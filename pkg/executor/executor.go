package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
)

// maxCollisionSuffix bounds the stem_N search.
const maxCollisionSuffix = 10000

// Executor applies moves.
type Executor struct {
	dryRun   bool
	pipeline string
	logger   logging.Logger
	metrics  *observability.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithDryRun sets dry-run mode.
func WithDryRun(dryRun bool) Option {
	return func(e *Executor) { e.dryRun = dryRun }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics mirrors every outcome into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithPipeline sets the pipeline label used for metrics.
func WithPipeline(name string) Option {
	return func(e *Executor) { e.pipeline = name }
}

// New creates an executor. Without options it runs live with a no-op logger.
func New(opts ...Option) *Executor {
	e := &Executor{
		pipeline: "adhoc",
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DryRun reports whether the executor only plans.
func (e *Executor) DryRun() bool { return e.dryRun }

// Preflight checks every destination directory before anything is touched.
// A non-directory entry anywhere on a destination path returns the
// *errors.InvariantError unwrapped so callers can map it to an exit code.
func (e *Executor) Preflight(moves []Move) error {
	seen := make(map[string]bool)
	for _, m := range moves {
		if seen[m.DestDir] {
			continue
		}
		seen[m.DestDir] = true

		if err := layout.CheckDir(m.DestDir); err != nil {
			if mrerrors.IsInvariant(err) {
				e.metrics.RecordInvariantViolation()
				e.logger.Error("destination path blocked by a file",
					logging.F("dest_dir", m.DestDir),
					logging.Err(err))
			}
			return err
		}
	}
	return nil
}

// ApplyAll runs Preflight and then applies moves in order. Per-item failures
// are recorded in the report; only the invariant, a preflight IO error or
// context cancellation stop the run.
func (e *Executor) ApplyAll(ctx context.Context, moves []Move) (*Report, error) {
	report := NewReport(e.dryRun)
	if err := e.Preflight(moves); err != nil {
		return report, err
	}

	for _, m := range moves {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Add(e.Apply(ctx, m))
	}

	e.logger.WithContext(ctx).Info("apply complete",
		logging.F("pipeline", e.pipeline),
		logging.F("dry_run", e.dryRun),
		logging.F("summary", report.Summary()))
	return report, nil
}

// Apply performs one move. It never returns an error: failures are carried
// in the outcome.
func (e *Executor) Apply(ctx context.Context, m Move) Outcome {
	log := e.logger.WithContext(ctx).With(
		logging.F("item", m.Name),
		logging.F("source", m.Source),
		logging.F("dest_dir", m.DestDir))

	var out Outcome
	if m.mode() == ModeCopy {
		out = e.applyCopy(m, log)
	} else {
		out = e.applyMove(m, log)
	}

	e.metrics.RecordItem(e.pipeline, string(out.Result))
	if out.Err != nil {
		e.metrics.RecordItemError(e.pipeline, string(out.Err.Code))
	}
	return out
}

func (e *Executor) applyMove(m Move, log logging.Logger) Outcome {
	out := Outcome{Move: m}

	if _, err := os.Lstat(m.Source); err != nil {
		return e.itemFailure(out, err, log)
	}

	if e.dryRun {
		dest, err := uniqueDest(m.DestDir, m.Name)
		if err != nil {
			return e.itemFailure(out, err, log)
		}
		out.Result = ResultPlanned
		out.Dest = dest
		log.Info(fmt.Sprintf("[DRY-RUN] would %s %s -> %s", m.verb(), m.Source, dest))
		return out
	}

	if err := os.MkdirAll(m.DestDir, 0755); err != nil {
		return e.itemFailure(out, err, log)
	}
	dest, err := uniqueDest(m.DestDir, m.Name)
	if err != nil {
		return e.itemFailure(out, err, log)
	}
	if err := moveEntry(m.Source, dest); err != nil {
		return e.itemFailure(out, err, log)
	}

	out.Result = Result(m.Category)
	if out.Result == "" {
		out.Result = ResultMoved
	}
	out.Dest = dest
	if dest != m.Dest() {
		out.Note = "renamed to avoid overwriting " + m.Name
	}
	log.Info("moved", logging.F("dest", dest), logging.F("category", string(m.Category)))

	if m.Sidecar != "" {
		if note := e.moveSidecar(m, dest, log); note != "" {
			out.Note = joinNotes(out.Note, note)
		}
	}
	return out
}

// moveSidecar carries the sidecar next to the moved item. A missing sidecar
// is fine. An existing sidecar at the destination is never overwritten: the
// source sidecar stays where it is. Neither case fails the item; the
// returned note says what was left behind.
func (e *Executor) moveSidecar(m Move, dest string, log logging.Logger) string {
	if _, err := os.Lstat(m.Sidecar); err != nil {
		return ""
	}
	suffix := m.SidecarSuffix
	if suffix == "" {
		suffix = filepath.Ext(m.Sidecar)
	}
	target := dest + suffix
	if _, err := os.Lstat(target); err == nil {
		log.Warn("sidecar destination exists, leaving sidecar in place",
			logging.F("sidecar", m.Sidecar), logging.F("dest", target))
		return "sidecar left in place: " + filepath.Base(target) + " exists"
	}
	if err := moveEntry(m.Sidecar, target); err != nil {
		log.Warn("failed to move sidecar", logging.F("sidecar", m.Sidecar), logging.Err(err))
		return "sidecar not moved"
	}
	return ""
}

func joinNotes(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

func (e *Executor) applyCopy(m Move, log logging.Logger) Outcome {
	out := Outcome{Move: m, Dest: m.Dest()}

	if _, err := os.Lstat(m.Source); err != nil {
		return e.itemFailure(out, err, log)
	}

	if _, err := os.Lstat(out.Dest); err == nil {
		out.Result = ResultDelivered
		out.Note = "already present"
		log.Info("already delivered", logging.F("dest", out.Dest))
		return out
	}

	if e.dryRun {
		out.Result = ResultPlanned
		log.Info(fmt.Sprintf("[DRY-RUN] would %s %s -> %s", m.verb(), m.Source, out.Dest))
		return out
	}

	if err := os.MkdirAll(m.DestDir, 0755); err != nil {
		return e.itemFailure(out, err, log)
	}

	// Copy under a temporary name so a partial copy is never mistaken for a
	// delivered one on the next run.
	tmp := filepath.Join(m.DestDir, "."+m.Name+".partial")
	_ = os.RemoveAll(tmp)
	if err := copyEntry(m.Source, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return e.itemFailure(out, err, log)
	}
	if err := os.Rename(tmp, out.Dest); err != nil {
		_ = os.RemoveAll(tmp)
		return e.itemFailure(out, err, log)
	}

	out.Result = ResultDelivered
	log.Info("copied", logging.F("dest", out.Dest))
	return out
}

func (e *Executor) itemFailure(out Outcome, err error, log logging.Logger) Outcome {
	ie := mrerrors.ClassifyError(err, out.Move.Name)
	out.Err = ie
	if mrerrors.IsSkippable(ie) {
		out.Result = ResultSkipped
		out.Note = "source no longer present"
		log.Warn("skipping item", logging.F("code", string(ie.Code)))
		return out
	}
	out.Result = ResultFailed
	log.Error("item failed", logging.F("code", string(ie.Code)), logging.Err(err))
	return out
}

// uniqueDest returns dir/name, or dir/stem_N.ext for the first free N.
func uniqueDest(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
		return candidate, nil
	} else if err != nil && !errors.Is(err, syscall.ENOTDIR) {
		return "", err
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	for n := 1; n <= maxCollisionSuffix; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", name, dir)
}

// moveEntry renames src to dst, falling back to copy and remove when the
// rename crosses a filesystem boundary.
func moveEntry(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyEntry(src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

// copyEntry copies a file or a whole tree. Symlinks are recreated, not followed.
func copyEntry(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	case info.IsDir():
		if err := os.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := copyEntry(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	default:
		return copyFile(src, dst, info)
	}
}

func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
