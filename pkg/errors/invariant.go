package errors

import (
	"errors"
	"fmt"
)

// ExitInvariant is the process exit code for a violated filesystem invariant.
const ExitInvariant = 2

// InvariantError reports that a path the pipeline needs as a directory is
// occupied by something else. It is the only error that aborts a whole run.
type InvariantError struct {
	// Path is the directory the run wanted to use.
	Path string
	// Conflict is the existing non-directory entry (Path itself or an ancestor).
	Conflict string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("mailroom invariant: destination path %s is blocked by non-directory %s", e.Path, e.Conflict)
}

// ExitCode returns the process exit code for this error.
func (e *InvariantError) ExitCode() int {
	return ExitInvariant
}

// Help returns operator guidance printed alongside the error.
func (e *InvariantError) Help() string {
	return fmt.Sprintf(`Expected: directory
Found:    file (%s)

Fix:
 - Rename or move the file so a directory can exist at this path, or
 - Move the file into an appropriate reference folder.

Run aborted to prevent ambiguous or destructive behavior.`, e.Conflict)
}

// IsInvariant reports whether any error in err's chain is an *InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ie *InvariantError
	if errors.As(err, &ie) {
		return ie.ExitCode()
	}
	return 1
}
