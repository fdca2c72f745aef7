package rules

// Snapshot is a point-in-time copy of a user's privacy settings, as
// loaded by the privacy service. The zero value (Exists=false) stands in
// for a user with no settings row and fails every check closed.
type Snapshot struct {
	UserID                    int64
	Verified                  bool
	Active                    bool
	ShowOnlyTodayShip         bool
	AllowFutureShipVisibility bool
	DeclineRequestsSilently   bool
	Exists                    bool
}

// CanSeeRoster reports whether two crew members may appear on each
// other's roster. Both sides must be verified and active; any block edge
// between the pair vetoes regardless of the rest.
func CanSeeRoster(viewer, target Snapshot, blocked bool) bool {
	if blocked {
		return false
	}
	return viewer.Verified && viewer.Active && target.Verified && target.Active
}

// CanSeeTodayShip requires roster visibility plus a symmetric opt-in to
// today-ship sharing from both users.
func CanSeeTodayShip(viewer, target Snapshot, blocked bool) bool {
	if !CanSeeRoster(viewer, target, blocked) {
		return false
	}
	return viewer.ShowOnlyTodayShip && target.ShowOnlyTodayShip
}

// CanSeeFutureShips is the narrowest tier: it implies CanSeeTodayShip,
// which in turn implies CanSeeRoster. Either side withholding the
// future-ship flag caps the pair at today-only visibility.
func CanSeeFutureShips(viewer, target Snapshot, blocked bool) bool {
	if !CanSeeTodayShip(viewer, target, blocked) {
		return false
	}
	return viewer.AllowFutureShipVisibility && target.AllowFutureShipVisibility
}
