// Package collection handles bulk intake through the COLLECTION area.
//
// Files dropped into COLLECTION/INCOMING are swept into a dated batch
// directory, described by an unreviewed snapshot and logged. Batches stay
// out of the daily inbox flow until a reviewer promotes them.
package collection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otherjamesbrown/mailroom/pkg/contentid"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/executor"
	"github.com/otherjamesbrown/mailroom/pkg/layout"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/observability"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// Scanner sweeps INCOMING into batches.
type Scanner struct {
	layout  layout.Layout
	rules   *rules.Rules
	exec    *executor.Executor
	store   *snapshot.Store
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	source  string
	now     func() time.Time
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithExecutor sets the executor; its dry-run mode governs the scan.
func WithExecutor(e *executor.Executor) ScannerOption {
	return func(s *Scanner) { s.exec = e }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) ScannerOption {
	return func(s *Scanner) { s.metrics = m }
}

// WithSource sets the batch source label (default "bulk_import").
func WithSource(source string) ScannerOption {
	return func(s *Scanner) { s.source = source }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

// NewScanner creates a scanner over l.
func NewScanner(l layout.Layout, r *rules.Rules, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		layout: l,
		rules:  r,
		logger: logging.NewNopLogger(),
		tracer: observability.NewTracer(),
		source: defaultBatchSource,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = executor.New(executor.WithDryRun(true), executor.WithLogger(s.logger))
	}
	s.store = snapshot.NewStore(l.Snapshots(layout.SourceCollection), s.logger)
	return s
}

// ScanResult describes one scan.
type ScanResult struct {
	BatchID  string             `json:"batch_id"`
	BatchDir string             `json:"batch_dir"`
	DryRun   bool               `json:"dry_run"`
	Snapshot *snapshot.Snapshot `json:"snapshot"`
	Report   *executor.Report   `json:"-"`
}

type incomingFile struct {
	rel  string
	path string
	info fs.FileInfo
	fp   contentid.Fingerprint
}

// Scan moves every file under INCOMING into a new batch, keeping relative
// paths, and records an unreviewed snapshot plus a batch log entry. An
// empty INCOMING returns errors.ErrNothingToDo. In dry-run the metadata is
// computed but nothing is moved or written.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanScan)
	defer span.End()

	incomingDir := s.layout.Collection(layout.CollectionIncoming)
	files, err := s.listIncoming(incomingDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files in %s", mrerrors.ErrNothingToDo, incomingDir)
	}

	now := s.now()
	batchID, err := s.nextBatchID(now)
	if err != nil {
		return nil, err
	}
	batchDir := filepath.Join(s.layout.Collection(layout.CollectionBatches), batchID)
	if err := s.checkBatchFree(batchID, batchDir); err != nil {
		return nil, err
	}
	log := s.logger.WithContext(ctx).With(logging.F("batch_id", batchID))
	log.Info("scanning collection", logging.F("files", len(files)), logging.F("dry_run", s.exec.DryRun()))

	moves := make([]executor.Move, 0, len(files))
	for _, f := range files {
		moves = append(moves, executor.Move{
			Name:     filepath.Base(f.rel),
			Source:   f.path,
			DestDir:  filepath.Join(batchDir, filepath.Dir(f.rel)),
			Category: executor.CategoryMoved,
		})
	}
	report, err := s.exec.ApplyAll(ctx, moves)
	if err != nil {
		return nil, err
	}

	// Metadata covers only what landed (or would land) in the batch.
	var batched []incomingFile
	for i, o := range report.Outcomes {
		if o.Result == executor.ResultMoved || o.Result == executor.ResultPlanned {
			batched = append(batched, files[i])
		}
	}

	snap := &snapshot.Snapshot{
		ID:             batchID,
		Source:         snapshot.SourceCollection,
		Status:         snapshot.StatusUnreviewed,
		Path:           batchDir,
		Items:          s.items(batched),
		CreatedAt:      now.UTC(),
		CollectionMeta: s.describe(batched),
	}
	result := &ScanResult{BatchID: batchID, BatchDir: batchDir, DryRun: s.exec.DryRun(), Snapshot: snap, Report: report}

	if s.exec.DryRun() {
		log.Info("[DRY-RUN] would create batch snapshot", logging.F("file_count", snap.FileCount))
		return result, nil
	}

	if err := s.store.Create(snap); err != nil {
		return result, fmt.Errorf("saving batch snapshot: %w", err)
	}
	entry := BatchLogEntry{BatchID: batchID, Timestamp: now.UTC(), FileCount: snap.FileCount, TotalSizeMB: snap.TotalSizeMB}
	if err := AppendBatchLog(s.layout.BatchLog(), entry); err != nil {
		return result, fmt.Errorf("appending batch log: %w", err)
	}
	s.metrics.RecordBatch()

	log.Info("collection scan complete",
		logging.F("file_count", snap.FileCount),
		logging.F("total_size_mb", snap.TotalSizeMB),
		logging.F("batch_dir", batchDir))
	return result, nil
}

// listIncoming walks INCOMING in lexical order and fingerprints each file.
func (s *Scanner) listIncoming(dir string) ([]incomingFile, error) {
	var files []incomingFile
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		f := incomingFile{rel: rel, path: p, info: info}
		if fp, err := contentid.File(p); err == nil {
			f.fp = fp
		} else {
			s.logger.Warn("fingerprint failed", logging.F("file", rel), logging.Err(err))
		}
		files = append(files, f)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", mrerrors.ErrNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return files, nil
}

// nextBatchID returns YYYY-MM-DD_<source>_NNN where NNN is one past the
// highest index in use that day, counting both batch directories and
// stored batch snapshots. Batches moved out of BATCHES keep their number.
func (s *Scanner) nextBatchID(now time.Time) (string, error) {
	if s.source == "" || strings.ContainsAny(s.source, `/\`) {
		return "", fmt.Errorf("%w: invalid batch source %q", mrerrors.ErrValidation, s.source)
	}
	prefix := now.Format(batchDateLayout) + batchIndexSeparator + s.source
	dirs, err := batchDirs(s.layout.Collection(layout.CollectionBatches))
	if err != nil {
		return "", err
	}
	ids, err := s.store.List()
	if err != nil {
		return "", err
	}

	highest := 0
	for _, name := range append(dirs, ids...) {
		if n, ok := batchIndex(name, prefix); ok && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%s%03d", prefix, batchIndexSeparator, highest+1), nil
}

// batchIndex parses NNN from "<prefix>_NNN". Anything else, including a
// longer source that shares the prefix, does not match.
func batchIndex(name, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix+batchIndexSeparator)
	if !ok || len(rest) != 3 {
		return 0, false
	}
	n := 0
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// checkBatchFree fails if the batch directory or snapshot already exists,
// so files are never merged into an unrelated batch.
func (s *Scanner) checkBatchFree(batchID, batchDir string) error {
	if _, err := os.Lstat(batchDir); err == nil {
		return fmt.Errorf("%w: batch directory %s already exists", mrerrors.ErrInvalidState, batchDir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", batchDir, err)
	}
	if _, err := os.Lstat(s.store.Path(batchID)); err == nil {
		return fmt.Errorf("%w: snapshot %s already exists", mrerrors.ErrInvalidState, batchID)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking snapshot %s: %w", batchID, err)
	}
	return nil
}

func (s *Scanner) items(files []incomingFile) []snapshot.Item {
	items := make([]snapshot.Item, 0, len(files))
	for _, f := range files {
		items = append(items, snapshot.Item{
			Name:        filepath.Base(f.rel),
			Path:        filepath.ToSlash(f.rel),
			Type:        s.rules.TypeBucket(f.rel),
			Size:        f.info.Size(),
			Modified:    f.info.ModTime().UTC(),
			Fingerprint: f.fp,
		})
	}
	return items
}

// describe computes batch metadata, flags and advisory notes.
func (s *Scanner) describe(files []incomingFile) *snapshot.CollectionMeta {
	meta := &snapshot.CollectionMeta{
		FileCount: len(files),
		FileTypes: make(map[string]int),
		AirNotes:  []string{},
	}

	var total int64
	baseNames := make(map[string]int)
	byPath := make(map[string]contentid.Fingerprint, len(files))
	for _, f := range files {
		total += f.info.Size()
		meta.FileTypes[s.rules.TypeBucket(f.rel)]++
		baseNames[filepath.Base(f.rel)]++
		byPath[filepath.ToSlash(f.rel)] = f.fp

		if s.rules.IsExecutable(f.rel) {
			meta.Flags.ContainsExecutables = true
		}
		if s.rules.IsArchive(f.rel) {
			meta.Flags.ContainsArchives = true
		}
	}
	meta.TotalSizeMB = math.Round(float64(total)/(1024*1024)*100) / 100

	nameDup := len(baseNames) < len(files)
	contentDups := contentid.Duplicates(byPath)
	meta.Flags.PossibleDuplicates = nameDup || len(contentDups) > 0

	if meta.Flags.ContainsExecutables {
		meta.AirNotes = append(meta.AirNotes, "Contains executable files - review security implications")
	}
	if meta.Flags.ContainsArchives {
		meta.AirNotes = append(meta.AirNotes, "Contains archive files - may need extraction before processing")
	}
	if nameDup {
		meta.AirNotes = append(meta.AirNotes, "Possible duplicate filenames detected")
	}
	for _, group := range contentDups {
		meta.AirNotes = append(meta.AirNotes, "Identical content: "+strings.Join(group, ", "))
	}
	if meta.TotalSizeMB > LargeBatchMB {
		meta.AirNotes = append(meta.AirNotes, fmt.Sprintf("Large batch (%gMB) - consider splitting", meta.TotalSizeMB))
	}
	return meta
}

// Batches loads the collection snapshots, newest first.
func (s *Scanner) Batches() ([]*snapshot.Snapshot, error) {
	ids, err := s.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]*snapshot.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.store.Load(id)
		if err != nil {
			s.logger.Warn("skipping unreadable batch snapshot", logging.F("id", id), logging.Err(err))
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// StoreDir is where batch snapshots are written.
func (s *Scanner) StoreDir() string { return s.store.Dir() }
