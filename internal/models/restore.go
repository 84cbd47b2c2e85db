package models

import "strings"

// OverwriteMode decides how a restore treats rows already present in the target period.
type OverwriteMode string

const (
	OverwriteMerge   OverwriteMode = "merge"
	OverwriteReplace OverwriteMode = "replace"
	OverwriteSkip    OverwriteMode = "skip"
)

// ParseOverwriteMode normalises user input. Empty input selects merge.
func ParseOverwriteMode(raw string) (OverwriteMode, bool) {
	switch mode := OverwriteMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return OverwriteMerge, true
	case OverwriteMerge, OverwriteReplace, OverwriteSkip:
		return mode, true
	default:
		return mode, false
	}
}

// Destructive reports whether the mode can discard or overwrite existing target rows.
func (m OverwriteMode) Destructive() bool {
	return m == OverwriteReplace || m == OverwriteMerge
}

// RestoreCounts reports rows written and rows left alone because of a conflict.
type RestoreCounts struct {
	RestoredMarks   int `json:"restoredMarks"`
	RestoredRemarks int `json:"restoredRemarks"`
	SkippedMarks    int `json:"skippedMarks"`
	SkippedRemarks  int `json:"skippedRemarks"`
}

// RestoreResult is returned after a restore commits.
type RestoreResult struct {
	RestoreCounts
	ArchiveID string        `json:"archiveId"`
	Mode      OverwriteMode `json:"mode"`
	Source    Period        `json:"source"`
	Target    Period        `json:"target"`
	Warnings  []string      `json:"warnings,omitempty"`
}

// TargetOccupancy describes what already lives in the target period relative to the source rows.
type TargetOccupancy struct {
	ExistingMarks      int `json:"existingMarks"`
	ExistingRemarks    int `json:"existingRemarks"`
	ConflictingMarks   int `json:"conflictingMarks"`
	ConflictingRemarks int `json:"conflictingRemarks"`
}

// Populated reports whether any row exists in the target period.
func (o TargetOccupancy) Populated() bool {
	return o.ExistingMarks > 0 || o.ExistingRemarks > 0
}

// Conflicts reports whether any source key is already taken in the target.
func (o TargetOccupancy) Conflicts() bool {
	return o.ConflictingMarks > 0 || o.ConflictingRemarks > 0
}

// RestorePreview is the dry-run view of a restore.
type RestorePreview struct {
	ArchiveID            string          `json:"archiveId"`
	Mode                 OverwriteMode   `json:"mode"`
	Source               Period          `json:"source"`
	Target               Period          `json:"target"`
	SourceMarks          int             `json:"sourceMarks"`
	SourceRemarks        int             `json:"sourceRemarks"`
	Occupancy            TargetOccupancy `json:"targetOccupancy"`
	RequiresConfirmation bool            `json:"requiresConfirmation"`
	Warnings             []string        `json:"warnings,omitempty"`
}
