// Package executor applies routing decisions to the filesystem.
//
// Every mutation goes through an Executor: a preflight pass checks that no
// destination path is blocked by a non-directory, then each move is applied
// in order with failures isolated to the item. In dry-run mode nothing is
// created, moved or copied; the executor only reports what it would do.
package executor

import (
	"fmt"
	"path/filepath"

	mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
)

// Category says why an item is moving.
type Category string

const (
	CategoryMoved     Category = "moved"
	CategoryArchived  Category = "archived"
	CategoryRejected  Category = "rejected"
	CategoryDelivered Category = "delivered"
)

// Mode selects move or copy semantics.
type Mode string

const (
	// ModeMove renames the source into place. Name collisions get a numeric suffix.
	ModeMove Mode = "move"
	// ModeCopy copies a file or tree. An existing destination counts as delivered.
	ModeCopy Mode = "copy"
)

// Result is the per-item outcome label.
type Result string

const (
	ResultMoved     Result = "moved"
	ResultArchived  Result = "archived"
	ResultRejected  Result = "rejected"
	ResultDelivered Result = "delivered"
	ResultPlanned   Result = "planned"
	ResultSkipped   Result = "skipped"
	ResultFailed    Result = "failed"
)

// Results lists every result in report order.
var Results = []Result{
	ResultMoved, ResultArchived, ResultRejected, ResultDelivered,
	ResultPlanned, ResultSkipped, ResultFailed,
}

// Move is one planned filesystem operation.
type Move struct {
	// Name is the entry name at the destination.
	Name     string
	Source   string
	DestDir  string
	Category Category
	Mode     Mode

	// Sidecar, when set, is moved next to the item under the item's final
	// name plus the sidecar suffix. Ignored in copy mode.
	Sidecar       string
	SidecarSuffix string
}

// Dest is the destination path before collision handling.
func (m Move) Dest() string {
	return filepath.Join(m.DestDir, m.Name)
}

func (m Move) mode() Mode {
	if m.Mode == "" {
		return ModeMove
	}
	return m.Mode
}

func (m Move) verb() string {
	if m.mode() == ModeCopy {
		return "copy"
	}
	return "move"
}

// Outcome records what happened to one move.
type Outcome struct {
	Move   Move
	Result Result
	// Dest is the final path (or the planned one in dry-run).
	Dest string
	// Note explains skipped or idempotent results.
	Note string
	Err  *mrerrors.ItemError
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s %s: %s", o.Result, o.Move.Name, o.Err.Code)
	}
	return fmt.Sprintf("%s %s -> %s", o.Result, o.Move.Name, o.Dest)
}
