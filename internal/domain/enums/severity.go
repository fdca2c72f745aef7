package enums

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityForActivityType mirrors the detector policy: rapid request
// bursts are throttling signals, everything else is treated as hostile.
func SeverityForActivityType(t ActivityType) Severity {
	if t == ActivityTypeRapidRequests {
		return SeverityMedium
	}
	return SeverityHigh
}
