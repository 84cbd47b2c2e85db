package dto

// RestoreArchiveRequest is the body of POST /restore-archive and its preview.
type RestoreArchiveRequest struct {
	ArchiveID     string `json:"archiveId" validate:"required"`
	TargetTerm    string `json:"targetTerm" validate:"required,term"`
	TargetYear    string `json:"targetYear" validate:"required,academic_year"`
	OverwriteMode string `json:"overwriteMode"`
	Confirm       bool   `json:"confirm"`
}
