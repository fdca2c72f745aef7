package enums

import "strings"

type PresenceState string

const (
	PresenceStateOnline  PresenceState = "online"
	PresenceStateAway    PresenceState = "away"
	PresenceStateOffline PresenceState = "offline"
)

func ParsePresenceState(raw string) (PresenceState, bool) {
	switch s := PresenceState(strings.ToLower(strings.TrimSpace(raw))); s {
	case PresenceStateOnline, PresenceStateAway, PresenceStateOffline:
		return s, true
	default:
		return "", false
	}
}
