package dto

import "time"

type ModerationActionRequest struct {
	TargetUserID    int64  `json:"target_user_id"`
	ActionType      string `json:"action_type"`
	Reason          string `json:"reason"`
	RelatedReportID *int64 `json:"related_report_id,omitempty"`
}

type ModerationActionResponse struct {
	ID              int64      `json:"id"`
	TargetUserID    int64      `json:"target_user_id"`
	ActionType      string     `json:"action_type"`
	Reason          string     `json:"reason"`
	PerformedByID   int64      `json:"performed_by_id"`
	RelatedReportID *int64     `json:"related_report_id,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ModerationActionsResponse struct {
	Items []ModerationActionResponse `json:"items"`
}

type SuspiciousActivityResponse struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	ActivityType     string     `json:"activity_type"`
	Severity         string     `json:"severity"`
	Details          string     `json:"details"`
	Resolved         bool       `json:"is_resolved"`
	ResolvedByUserID *int64     `json:"resolved_by_user_id,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type SuspiciousActivitiesResponse struct {
	Items []SuspiciousActivityResponse `json:"items"`
}

type ModerationStatsResponse struct {
	ReportsByStatus map[string]int64 `json:"reports_by_status"`
	ReportsByType   map[string]int64 `json:"reports_by_type"`
	OpenActivities  int64            `json:"open_activities"`
	ActiveBans      int64            `json:"active_bans"`
}

type SetVerificationRequest struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}
