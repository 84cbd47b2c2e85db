package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Period identifies the (term, academic year) key marks and remarks are scoped under.
type Period struct {
	Term         string `json:"term"`
	AcademicYear string `json:"academicYear"`
}

// String renders the period as "First Term 2024/2025".
func (p Period) String() string {
	return p.Term + " " + p.AcademicYear
}

// ArchiveMetadata is free-form JSON stored with an archive and returned unmodified.
type ArchiveMetadata map[string]interface{}

// Value implements driver.Valuer.
func (m ArchiveMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal archive metadata: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner for JSON/JSONB/TEXT columns.
func (m *ArchiveMetadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan archive metadata: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	decoded := ArchiveMetadata{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("scan archive metadata: %w", err)
	}
	*m = decoded
	return nil
}

// Archive marks a (term, academic year) pair as snapshotted. It does not own marks or remarks.
type Archive struct {
	ID           string          `db:"id" json:"id"`
	Term         string          `db:"term" json:"term"`
	AcademicYear string          `db:"academic_year" json:"academicYear"`
	ArchivedDate time.Time       `db:"archived_date" json:"archivedDate"`
	ArchivedBy   *string         `db:"archived_by" json:"archivedBy"`
	Metadata     ArchiveMetadata `db:"metadata" json:"metadata"`
}

// Period returns the archive's source period.
func (a Archive) Period() Period {
	return Period{Term: a.Term, AcademicYear: a.AcademicYear}
}

// ArchiveCounts aggregates the live rows behind an archived period.
type ArchiveCounts struct {
	Marks    int `db:"mark_count" json:"marks"`
	Remarks  int `db:"remark_count" json:"remarks"`
	Students int `db:"student_count" json:"students"`
}

// ArchiveSummary is one entry of the archive list.
type ArchiveSummary struct {
	Archive
	Counts ArchiveCounts `json:"counts"`
}

// ArchiveSummaryRow is the flat scan target of the grouped list query.
type ArchiveSummaryRow struct {
	Archive
	ArchiveCounts
}

// Summary splits the scanned row into the response shape.
func (r ArchiveSummaryRow) Summary() ArchiveSummary {
	return ArchiveSummary{Archive: r.Archive, Counts: r.ArchiveCounts}
}

// ArchiveFilter narrows listing queries.
type ArchiveFilter struct {
	Term         string
	AcademicYear string
	Limit        int
	Offset       int
}

// Pagination describes the window of a list response.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	TotalCount int  `json:"totalCount"`
	HasMore    bool `json:"hasMore"`
}

// NewPagination fills HasMore from the window and the total.
func NewPagination(limit, offset, total int) Pagination {
	return Pagination{Limit: limit, Offset: offset, TotalCount: total, HasMore: offset+limit < total}
}

// ArchivePage is one window of the archive list.
type ArchivePage struct {
	Items      []ArchiveSummary `json:"items"`
	Pagination Pagination       `json:"pagination"`
}

// ArchiveDetail is the assembled record set of one archive.
type ArchiveDetail struct {
	Archive  Archive        `json:"archive"`
	Marks    []MarkRecord   `json:"marks"`
	Remarks  []RemarkRecord `json:"remarks"`
	Students []Student      `json:"students"`
}
