package enums

import "strings"

type ActionType string

const (
	ActionTypeWarning            ActionType = "warning"
	ActionTypeTemporaryBan       ActionType = "temporary_ban"
	ActionTypePermanentBan       ActionType = "permanent_ban"
	ActionTypeContentRemoval     ActionType = "content_removal"
	ActionTypeProfileRestriction ActionType = "profile_restriction"
	ActionTypeNoAction           ActionType = "no_action"
)

func ParseActionType(raw string) (ActionType, bool) {
	switch t := ActionType(strings.ToLower(strings.TrimSpace(raw))); t {
	case ActionTypeWarning, ActionTypeTemporaryBan, ActionTypePermanentBan,
		ActionTypeContentRemoval, ActionTypeProfileRestriction, ActionTypeNoAction:
		return t, true
	default:
		return "", false
	}
}

// Ban actions must also drop the target's active flag so every
// visibility predicate vetoes the user.
func (t ActionType) Ban() bool {
	return t == ActionTypeTemporaryBan || t == ActionTypePermanentBan
}
