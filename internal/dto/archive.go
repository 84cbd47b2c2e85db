package dto

// CreateArchiveRequest is the body of POST /archives.
type CreateArchiveRequest struct {
	Term         string                 `json:"term" validate:"required,term"`
	AcademicYear string                 `json:"academicYear" validate:"required,academic_year"`
	ArchivedBy   *string                `json:"archivedBy"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// ArchiveListQuery captures the query string of GET /archives.
type ArchiveListQuery struct {
	ArchiveID string `form:"archiveId"`
	Term      string `form:"term"`
	Year      string `form:"year"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}
