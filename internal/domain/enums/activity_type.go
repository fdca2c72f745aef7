package enums

import "strings"

type ActivityType string

const (
	ActivityTypeRapidRequests         ActivityType = "rapid_requests"
	ActivityTypeSpamMessages          ActivityType = "spam_messages"
	ActivityTypeFakeProfileIndicators ActivityType = "fake_profile_indicators"
	ActivityTypeSuspiciousPatterns    ActivityType = "suspicious_patterns"
)

func ParseActivityType(raw string) (ActivityType, bool) {
	switch t := ActivityType(strings.ToLower(strings.TrimSpace(raw))); t {
	case ActivityTypeRapidRequests, ActivityTypeSpamMessages, ActivityTypeFakeProfileIndicators, ActivityTypeSuspiciousPatterns:
		return t, true
	default:
		return "", false
	}
}
