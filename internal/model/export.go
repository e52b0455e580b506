package model

import "time"

// InterviewExport is the top-level JSON structure written by the export command.
type InterviewExport struct {
	ExportedAt time.Time         `json:"exported_at"`
	RoundType  RoundType         `json:"round_type,omitempty"`
	Count      int               `json:"count"`
	Interviews []CandidateResult `json:"interviews"`
}

// CandidateResult holds one session together with its owner for export.
type CandidateResult struct {
	Username      string           `json:"username"`
	DisplayName   string           `json:"display_name"`
	SessionNumber int              `json:"session_number"`
	Interview     InterviewSession `json:"interview"`
	OverallScore  *int             `json:"overall_score,omitempty"`
}
