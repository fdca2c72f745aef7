package enums

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDeclined RequestStatus = "declined"
	RequestStatusBlocked  RequestStatus = "blocked"
)

// Terminal statuses are immutable; only a pending request may transition.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusAccepted, RequestStatusDeclined, RequestStatusBlocked:
		return true
	default:
		return false
	}
}
