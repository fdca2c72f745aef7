package rules

import "testing"

func fullAccess(id int64) Snapshot {
	return Snapshot{
		UserID:                    id,
		Verified:                  true,
		Active:                    true,
		ShowOnlyTodayShip:         true,
		AllowFutureShipVisibility: true,
		Exists:                    true,
	}
}

func TestCanSeeRosterRequiresBothSidesVerifiedAndActive(t *testing.T) {
	a := fullAccess(1)
	b := fullAccess(2)

	if !CanSeeRoster(a, b, false) {
		t.Fatalf("two verified active users must see each other")
	}

	unverified := b
	unverified.Verified = false
	if CanSeeRoster(a, unverified, false) || CanSeeRoster(unverified, a, false) {
		t.Fatalf("unverified side must hide the pair in both directions")
	}

	inactive := b
	inactive.Active = false
	if CanSeeRoster(a, inactive, false) || CanSeeRoster(inactive, a, false) {
		t.Fatalf("inactive side must hide the pair in both directions")
	}
}

func TestBlockVetoesEverything(t *testing.T) {
	a := fullAccess(1)
	b := fullAccess(2)

	if CanSeeRoster(a, b, true) {
		t.Fatalf("block must veto roster visibility")
	}
	if CanSeeTodayShip(a, b, true) {
		t.Fatalf("block must veto today-ship visibility")
	}
	if CanSeeFutureShips(a, b, true) {
		t.Fatalf("block must veto future-ship visibility")
	}
}

func TestMissingSettingsFailClosed(t *testing.T) {
	a := fullAccess(1)
	var missing Snapshot

	if CanSeeRoster(a, missing, false) {
		t.Fatalf("user without settings must be invisible")
	}
	if CanSeeRoster(missing, a, false) {
		t.Fatalf("viewer without settings must see nothing")
	}
}

func TestVisibilityImplicationChain(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"full", func(*Snapshot) {}},
		{"no_future", func(s *Snapshot) { s.AllowFutureShipVisibility = false }},
		{"no_today", func(s *Snapshot) { s.ShowOnlyTodayShip = false }},
		{"unverified", func(s *Snapshot) { s.Verified = false }},
		{"inactive", func(s *Snapshot) { s.Active = false }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := fullAccess(1)
			b := fullAccess(2)
			tc.mutate(&b)

			future := CanSeeFutureShips(a, b, false)
			today := CanSeeTodayShip(a, b, false)
			roster := CanSeeRoster(a, b, false)

			if future && !today {
				t.Fatalf("future visibility must imply today visibility")
			}
			if today && !roster {
				t.Fatalf("today visibility must imply roster visibility")
			}
		})
	}
}

func TestFutureShipsNeedSymmetricOptIn(t *testing.T) {
	a := fullAccess(1)
	b := fullAccess(2)
	b.AllowFutureShipVisibility = false

	if !CanSeeTodayShip(a, b, false) {
		t.Fatalf("today-ship visibility should survive a future-ship opt-out")
	}
	if CanSeeFutureShips(a, b, false) || CanSeeFutureShips(b, a, false) {
		t.Fatalf("one side opting out must cap the pair at today-only")
	}
}
