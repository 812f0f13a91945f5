// Package rules holds the static rule tables shared by the classifier,
// router and batch scanner.
//
// A Rules value is built once per run and passed explicitly to every
// component that needs it. Nothing in this package is mutable global state:
// Default returns a fresh value on each call and tests may construct
// synthetic tables directly.
package rules

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// Priority is the triage tier assigned by the classifier.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Stage directories in the single-pipeline layout.
const (
	StageActive    = "ACTIVE"
	StageWaiting   = "WAITING"
	StageDone      = "DONE"
	StageArchive   = "ARCHIVE"
	StageReference = "REFERENCE"
)

// Archive buckets for non-actionable files.
const (
	BucketLogs           = "LOGS"
	BucketRuntimeExhaust = "RUNTIME_EXHAUST"
	BucketBackups        = "BACKUPS"
	BucketMetadata       = "METADATA"
	BucketPackages       = "PACKAGES"
)

// KeywordTier is one priority tier and the keywords that select it.
type KeywordTier struct {
	Priority Priority
	Keywords []string
}

// Rules is the immutable rule set for one run.
type Rules struct {
	// AllowedExtensions are the actionable document extensions (lower case, with dot).
	AllowedExtensions []string

	// NonActionable maps an extension or a whole lower-cased file name to an archive bucket.
	NonActionable map[string]string

	// Tiers are tested in order; the first tier with a match sets the priority.
	Tiers []KeywordTier

	// Stages is the closed destination set of the single-pipeline variant.
	Stages       []string
	DefaultStage string

	// Offices is the closed destination set of the multi-office variant.
	Offices       []string
	DefaultOffice string

	// KnownTypes are the extensions (without dot) reported individually in a
	// batch histogram; everything else is counted as "unknown".
	KnownTypes           []string
	ExecutableExtensions []string
	ArchiveExtensions    []string
}

// Fold returns the case-folded form of s used for every case-insensitive
// comparison in the pipeline. A Caser is stateful, so each call builds its own.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Default returns the production rule tables.
func Default() *Rules {
	return &Rules{
		AllowedExtensions: []string{
			".docx", ".pdf", ".xlsx", ".pptx", ".txt", ".rtf", ".odt", ".doc", ".xls", ".ppt",
		},
		NonActionable: map[string]string{
			".log":      BucketLogs,
			".err":      BucketLogs,
			".out":      BucketLogs,
			".tmp":      BucketRuntimeExhaust,
			".cache":    BucketRuntimeExhaust,
			".lock":     BucketRuntimeExhaust,
			".pid":      BucketRuntimeExhaust,
			".bak":      BucketBackups,
			".old":      BucketBackups,
			".swp":      BucketBackups,
			".ds_store": BucketBackups,
			"thumbs.db": BucketBackups,
			".meta":     BucketMetadata,
			".jsonl":    BucketMetadata,
			".trace":    BucketMetadata,
			".zip":      BucketPackages,
			".rar":      BucketPackages,
			".7z":       BucketPackages,
			".tar":      BucketPackages,
			".gz":       BucketPackages,
		},
		Tiers: []KeywordTier{
			{Priority: PriorityUrgent, Keywords: []string{"critical", "emergency", "immediate", "urgent", "ceo", "executive"}},
			{Priority: PriorityHigh, Keywords: []string{"important", "priority", "deadline", "review"}},
			{Priority: PriorityMedium, Keywords: []string{"check", "verify", "follow up", "meeting"}},
		},
		Stages:        []string{StageActive, StageWaiting, StageDone, StageArchive, StageReference},
		DefaultStage:  StageDone,
		Offices:       []string{"CEO", "CFO", "CLO", "CMO", "COO", "CSO", "CTO", "CIO", "EXEC"},
		DefaultOffice: "EXEC",
		KnownTypes: []string{
			"zip", "pdf", "docx", "exe", "txt", "jpg", "png", "doc", "xls", "xlsx",
		},
		ExecutableExtensions: []string{"exe", "msi", "bat", "cmd"},
		ArchiveExtensions:    []string{"zip", "rar", "7z", "tar", "gz"},
	}
}

// Ext returns the lower-cased extension of name including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsAllowed reports whether name has an actionable extension.
func (r *Rules) IsAllowed(name string) bool {
	return contains(r.AllowedExtensions, Ext(name))
}

// ArchiveBucket returns the archive bucket for a non-actionable file.
// Whole-name entries take precedence over the extension.
func (r *Rules) ArchiveBucket(name string) (string, bool) {
	base := strings.ToLower(filepath.Base(name))
	if bucket, ok := r.NonActionable[base]; ok {
		return bucket, true
	}
	bucket, ok := r.NonActionable[Ext(name)]
	return bucket, ok
}

// Canonical returns the member of set equal to s ignoring case.
func Canonical(set []string, s string) (string, bool) {
	f := Fold(strings.TrimSpace(s))
	if f == "" {
		return "", false
	}
	for _, m := range set {
		if Fold(m) == f {
			return m, true
		}
	}
	return "", false
}

// IsOffice reports whether s names one of the fixed offices.
func (r *Rules) IsOffice(s string) bool {
	_, ok := Canonical(r.Offices, s)
	return ok
}

// IsStage reports whether s names one of the stage directories.
func (r *Rules) IsStage(s string) bool {
	_, ok := Canonical(r.Stages, s)
	return ok
}

// Keywords returns every keyword across all tiers, in tier order.
func (r *Rules) Keywords() []string {
	var all []string
	for _, t := range r.Tiers {
		all = append(all, t.Keywords...)
	}
	return all
}

// TypeBucket returns the histogram key for name: its bare extension when
// known, otherwise "unknown".
func (r *Rules) TypeBucket(name string) string {
	ext := strings.TrimPrefix(Ext(name), ".")
	if contains(r.KnownTypes, ext) {
		return ext
	}
	return "unknown"
}

// IsExecutable reports whether name has an executable extension.
func (r *Rules) IsExecutable(name string) bool {
	return contains(r.ExecutableExtensions, strings.TrimPrefix(Ext(name), "."))
}

// IsArchive reports whether name has an archive extension.
func (r *Rules) IsArchive(name string) bool {
	return contains(r.ArchiveExtensions, strings.TrimPrefix(Ext(name), "."))
}

func contains(set []string, s string) bool {
	for _, m := range set {
		if m == s {
			return true
		}
	}
	return false
}
