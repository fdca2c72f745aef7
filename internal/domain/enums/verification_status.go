package enums

import "strings"

type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusRejected VerificationStatus = "rejected"
)

func ParseVerificationStatus(raw string) (VerificationStatus, bool) {
	switch s := VerificationStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case VerificationStatusPending, VerificationStatusVerified, VerificationStatusRejected:
		return s, true
	default:
		return "", false
	}
}
