package route

import (
	"github.com/otherjamesbrown/mailroom/pkg/executor"
	"github.com/otherjamesbrown/mailroom/pkg/rules"
)

// Intake is the mailroom-pass decision for one inbox file.
type Intake struct {
	// Stage is ACTIVE, REFERENCE or ARCHIVE.
	Stage string
	// Bucket is the archive subfolder for non-actionable files.
	Bucket   string
	Category executor.Category
}

// Intake sorts an inbox file by its name alone: non-actionable files go
// to their archive bucket, disallowed types to REFERENCE, the rest to ACTIVE.
func (rt *Router) Intake(filename string) Intake {
	if bucket, ok := rt.rules.ArchiveBucket(filename); ok {
		return Intake{Stage: rules.StageArchive, Bucket: bucket, Category: executor.CategoryArchived}
	}
	if !rt.rules.IsAllowed(filename) {
		return Intake{Stage: rules.StageReference, Category: executor.CategoryRejected}
	}
	return Intake{Stage: rules.StageActive, Category: executor.CategoryMoved}
}
