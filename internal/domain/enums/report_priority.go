package enums

type ReportPriority string

const (
	ReportPriorityLow    ReportPriority = "low"
	ReportPriorityMedium ReportPriority = "medium"
	ReportPriorityHigh   ReportPriority = "high"
	ReportPriorityUrgent ReportPriority = "urgent"
)

// PriorityForReportType derives the initial triage priority from the
// report type. Harassment reports jump the queue.
func PriorityForReportType(t ReportType) ReportPriority {
	if t == ReportTypeHarassment {
		return ReportPriorityHigh
	}
	return ReportPriorityMedium
}
