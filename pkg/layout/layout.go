// Package layout derives every directory the pipeline touches from a single root.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

// Snapshot partitions.
const (
	SourceInbox      = "inbox"
	SourceCollection = "collection"
)

// COLLECTION subdirectories.
const (
	CollectionIncoming = "INCOMING"
	CollectionBatches  = "BATCHES"
	CollectionReview   = "REVIEW"
	CollectionHold     = "HOLD"
	CollectionTrash    = "TRASH_CANDIDATE"
	CollectionLogs     = "logs"
)

// Layout is the directory contract rooted at Root.
type Layout struct {
	Root string
	// ArchiveDir and ReferenceDir default to <Root>/ARCHIVE and <Root>/REFERENCE.
	ArchiveDir   string
	ReferenceDir string
}

// New returns the layout for root with default ARCHIVE and REFERENCE locations.
func New(root string) Layout {
	return Layout{
		Root:         root,
		ArchiveDir:   filepath.Join(root, rules.StageArchive),
		ReferenceDir: filepath.Join(root, rules.StageReference),
	}
}

// WithArchive overrides the ARCHIVE location when dir is non-empty.
func (l Layout) WithArchive(dir string) Layout {
	if dir != "" {
		l.ArchiveDir = dir
	}
	return l
}

// WithReference overrides the REFERENCE location when dir is non-empty.
func (l Layout) WithReference(dir string) Layout {
	if dir != "" {
		l.ReferenceDir = dir
	}
	return l
}

func (l Layout) Inbox() string     { return filepath.Join(l.Root, "inbox") }
func (l Layout) Packages() string  { return filepath.Join(l.Root, "packages") }
func (l Layout) Processed() string { return filepath.Join(l.Root, "processed") }

// Stage returns the directory for a stage name. ARCHIVE and REFERENCE honor
// their configured locations.
func (l Layout) Stage(stage string) string {
	switch stage {
	case rules.StageArchive:
		return l.ArchiveDir
	case rules.StageReference:
		return l.ReferenceDir
	default:
		return filepath.Join(l.Root, stage)
	}
}

// ArchiveBucket returns ARCHIVE/<bucket>.
func (l Layout) ArchiveBucket(bucket string) string {
	return filepath.Join(l.ArchiveDir, bucket)
}

// OfficeInbox returns offices/<office>/inbox.
func (l Layout) OfficeInbox(office string) string {
	return filepath.Join(l.Root, "offices", office, "inbox")
}

// Snapshots returns snapshots/<source>.
func (l Layout) Snapshots(source string) string {
	return filepath.Join(l.Root, "snapshots", source)
}

// Collection returns COLLECTION/<sub>, or COLLECTION itself for "".
func (l Layout) Collection(sub string) string {
	return filepath.Join(l.Root, "COLLECTION", sub)
}

// BatchLog returns the append-only batch log path.
func (l Layout) BatchLog() string {
	return filepath.Join(l.Collection(CollectionLogs), "batch_log.json")
}

// DecisionOutput returns the path presenters read triage decisions from.
func (l Layout) DecisionOutput() string {
	return filepath.Join(l.Root, "air_output.json")
}

// ProcessorConfig returns the dry-run switch file.
func (l Layout) ProcessorConfig() string {
	return filepath.Join(l.Root, "processor_config.json")
}

// RoutingConfig returns the routing overrides file.
func (l Layout) RoutingConfig() string {
	return filepath.Join(l.Root, "config", "routing_config.json")
}

// Dirs lists every directory of the contract for the given rule tables.
func (l Layout) Dirs(r *rules.Rules) []string {
	dirs := []string{l.Inbox()}
	for _, s := range r.Stages {
		dirs = append(dirs, l.Stage(s))
	}
	seen := map[string]bool{}
	var buckets []string
	for _, b := range r.NonActionable {
		if !seen[b] {
			seen[b] = true
			buckets = append(buckets, b)
		}
	}
	sort.Strings(buckets)
	for _, b := range buckets {
		dirs = append(dirs, l.ArchiveBucket(b))
	}
	dirs = append(dirs,
		l.Snapshots(SourceInbox),
		l.Snapshots(SourceCollection),
		l.Packages(),
		l.Processed(),
		filepath.Dir(l.RoutingConfig()),
	)
	for _, o := range r.Offices {
		dirs = append(dirs, l.OfficeInbox(o))
	}
	for _, c := range []string{CollectionIncoming, CollectionBatches, CollectionReview, CollectionHold, CollectionTrash, CollectionLogs} {
		dirs = append(dirs, l.Collection(c))
	}
	return dirs
}

// Init creates the directory contract. It is idempotent and returns the
// directories it had to create. A file occupying any contract path is an
// *errors.InvariantError and nothing is created.
func (l Layout) Init(r *rules.Rules) ([]string, error) {
	dirs := l.Dirs(r)
	for _, d := range dirs {
		if err := CheckDir(d); err != nil {
			return nil, err
		}
	}

	var created []string
	for _, d := range dirs {
		if _, err := os.Stat(d); err == nil {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return created, fmt.Errorf("creating %s: %w", d, err)
		}
		created = append(created, d)
	}
	return created, nil
}

// CheckDir walks from dir up to its first existing ancestor and fails with
// an *errors.InvariantError if that entry is not a directory.
func CheckDir(dir string) error {
	for p := filepath.Clean(dir); ; p = filepath.Dir(p) {
		info, err := os.Stat(p)
		switch {
		case err == nil:
			if !info.IsDir() {
				return &mrerrors.InvariantError{Path: dir, Conflict: p}
			}
			return nil
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
			// keep walking up
		default:
			return fmt.Errorf("checking %s: %w", p, err)
		}
		if filepath.Dir(p) == p {
			return nil
		}
	}
}
