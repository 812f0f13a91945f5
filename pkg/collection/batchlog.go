package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/otherjamesbrown/mailroom/pkg/snapshot"
)

// BatchLogEntry is one line of COLLECTION/logs/batch_log.json.
type BatchLogEntry struct {
	BatchID     string    `json:"batch_id"`
	Timestamp   time.Time `json:"timestamp"`
	FileCount   int       `json:"file_count"`
	TotalSizeMB float64   `json:"total_size_mb"`
}

// ReadBatchLog returns the log entries at path. A missing log is empty.
func ReadBatchLog(path string) ([]BatchLogEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading batch log: %w", err)
	}

	var entries []BatchLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing batch log %s: %w", path, err)
	}
	return entries, nil
}

// AppendBatchLog appends entry to the log at path. A malformed log is left
// untouched and reported.
func AppendBatchLog(path string, entry BatchLogEntry) error {
	entries, err := ReadBatchLog(path)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return snapshot.WriteJSON(path, entries)
}
