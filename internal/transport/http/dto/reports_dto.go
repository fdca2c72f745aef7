package dto

import "time"

type SubmitReportRequest struct {
	ReportedUserID int64    `json:"reported_user_id"`
	ReportType     string   `json:"report_type"`
	Description    string   `json:"description"`
	EvidenceKeys   []string `json:"evidence_keys"`
}

type ReportResponse struct {
	ID               int64     `json:"id"`
	ReporterUserID   int64     `json:"reporter_user_id"`
	ReportedUserID   int64     `json:"reported_user_id"`
	ReportType       string    `json:"report_type"`
	Description      string    `json:"description"`
	Status           string    `json:"status"`
	Priority         string    `json:"priority"`
	ReviewedByUserID *int64    `json:"reviewed_by_user_id,omitempty"`
	ResolutionNotes  *string   `json:"resolution_notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ReportViewResponse struct {
	Report       ReportResponse `json:"report"`
	EvidenceURLs []string       `json:"evidence_urls"`
}

type ReportsResponse struct {
	Items []ReportResponse `json:"items"`
}

type UpdateReportStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}
