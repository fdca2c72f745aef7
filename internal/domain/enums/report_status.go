package enums

import "strings"

type ReportStatus string

const (
	ReportStatusPending     ReportStatus = "pending"
	ReportStatusUnderReview ReportStatus = "under_review"
	ReportStatusResolved    ReportStatus = "resolved"
	ReportStatusDismissed   ReportStatus = "dismissed"
)

func ParseReportStatus(raw string) (ReportStatus, bool) {
	switch s := ReportStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case ReportStatusPending, ReportStatusUnderReview, ReportStatusResolved, ReportStatusDismissed:
		return s, true
	default:
		return "", false
	}
}

// CanTransitionTo encodes the review pipeline: a report moves forward
// through pending -> under_review -> resolved/dismissed and never back.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case ReportStatusPending:
		return next == ReportStatusUnderReview || next == ReportStatusDismissed
	case ReportStatusUnderReview:
		return next == ReportStatusResolved || next == ReportStatusDismissed
	default:
		return false
	}
}
