package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otherjamesbrown/mailroom/pkg/contentid"
	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
	"github.com/otherjamesbrown/mailroom/pkg/logging"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// CreateInboxSnapshot lists the regular files in the inbox, sorted by name,
// and persists them as a new unprocessed snapshot. An empty inbox returns
// errors.ErrNothingToDo.
func CreateInboxSnapshot(ctx context.Context, d Deps) (*snapshot.Snapshot, error) {
	d = d.withDefaults()
	log := d.Logger.WithContext(ctx)

	dir := d.Layout.Inbox()
	items, err := listFiles(dir, d.Logger)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: inbox %s is empty", mrerrors.ErrNothingToDo, dir)
	}

	now := d.Now()
	snap := &snapshot.Snapshot{
		ID:        snapshot.NewID(now),
		Source:    snapshot.SourceInbox,
		Status:    snapshot.StatusUnprocessed,
		Path:      dir,
		Items:     items,
		CreatedAt: now.UTC(),
	}
	if err := d.inboxStore().Create(snap); err != nil {
		return nil, err
	}

	log.Info("inbox snapshot created",
		logging.F("snapshot_id", snap.ID),
		logging.F("items", len(items)))
	return snap, nil
}

// listFiles returns the regular files directly under dir as snapshot items,
// sorted by name.
func listFiles(dir string, logger logging.Logger) ([]snapshot.Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", mrerrors.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var items []snapshot.Item
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Gone between listing and stat.
			continue
		}
		item := snapshot.Item{
			Name:     e.Name(),
			Type:     strings.TrimPrefix(rules.Ext(e.Name()), "."),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		}
		if fp, err := contentid.File(filepath.Join(dir, e.Name())); err == nil {
			item.Fingerprint = fp
		} else {
			logger.Debug("fingerprint failed", logging.F("file", e.Name()), logging.Err(err))
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}
