package enums

import "strings"

type ReportType string

const (
	ReportTypeSpam                 ReportType = "spam"
	ReportTypeHarassment           ReportType = "harassment"
	ReportTypeInappropriateContent ReportType = "inappropriate_content"
	ReportTypeFakeProfile          ReportType = "fake_profile"
	ReportTypeOther                ReportType = "other"
)

func ParseReportType(raw string) (ReportType, bool) {
	switch t := ReportType(strings.ToLower(strings.TrimSpace(raw))); t {
	case ReportTypeSpam, ReportTypeHarassment, ReportTypeInappropriateContent, ReportTypeFakeProfile, ReportTypeOther:
		return t, true
	default:
		return "", false
	}
}
