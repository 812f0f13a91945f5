package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
)

const fileExtension = ".json"

// Store reads and writes snapshots in one partition directory.
type Store struct {
	dir    string
	logger logging.Logger
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the partition directory.
func (st *Store) Dir() string { return st.dir }

// Path returns the file path for a snapshot id.
func (st *Store) Path(id string) string {
	return filepath.Join(st.dir, id+fileExtension)
}

// Create persists a new snapshot. It fails with ErrInvalidState if a
// snapshot with the same id already exists.
func (st *Store) Create(s *Snapshot) error {
	if s.ID == "" {
		return fmt.Errorf("%w: snapshot id is required", mrerrors.ErrValidation)
	}
	if _, err := os.Stat(st.Path(s.ID)); err == nil {
		return fmt.Errorf("%w: snapshot %s already exists", mrerrors.ErrInvalidState, s.ID)
	}
	return st.Save(s)
}

// Save atomically replaces the snapshot file.
func (st *Store) Save(s *Snapshot) error {
	if s.Items == nil {
		s.Items = []Item{}
	}
	if err := WriteJSON(st.Path(s.ID), s); err != nil {
		return fmt.Errorf("snapshot %s: %w", s.ID, err)
	}
	return nil
}

// Load reads the snapshot with the given id.
func (st *Store) Load(id string) (*Snapshot, error) {
	data, err := os.ReadFile(st.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot %s: %w", id, mrerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot %s: parse: %w", id, err)
	}
	if s.ID == "" {
		s.ID = id
	}
	return &s, nil
}

// List returns snapshot ids sorted descending (newest first). A missing
// directory yields an empty list.
func (st *Store) List() ([]string, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExtension))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Latest returns the newest snapshot.
func (st *Store) Latest() (*Snapshot, error) {
	ids, err := st.List()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no snapshots in %s: %w", st.dir, mrerrors.ErrNotFound)
	}
	return st.Load(ids[0])
}

// LatestWithStatus returns the newest snapshot in the given status.
// Unreadable snapshots are logged and skipped.
func (st *Store) LatestWithStatus(status Status) (*Snapshot, error) {
	ids, err := st.List()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s, err := st.Load(id)
		if err != nil {
			st.logger.Warn("Skipping unreadable snapshot", logging.F("snapshot_id", id), logging.Err(err))
			continue
		}
		if s.Status == status {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no %s snapshot in %s: %w", status, st.dir, mrerrors.ErrNotFound)
}
