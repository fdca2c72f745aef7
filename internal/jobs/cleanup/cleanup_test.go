package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunSweepsExpiredCooldowns(t *testing.T) {
	now := time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)

	cooldowns := &fakeCooldownSweeper{
		until: []time.Time{
			now.Add(-time.Hour),
			now.Add(23 * time.Hour),
		},
	}

	job := New(cooldowns, nil, nil, 0, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}

	if len(cooldowns.until) != 1 {
		t.Fatalf("expected one surviving cooldown, got %d", len(cooldowns.until))
	}
	if !cooldowns.until[0].After(now) {
		t.Fatalf("surviving cooldown should still be active")
	}
}

func TestRunUsesActivityRetentionCutoff(t *testing.T) {
	now := time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)

	activities := &fakeActivitySweeper{}
	job := New(nil, activities, nil, 30*24*time.Hour, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}

	want := now.Add(-30 * 24 * time.Hour)
	if !activities.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", activities.cutoff, want)
	}
}

func TestRunLiftsLapsedBans(t *testing.T) {
	bans := &fakeBanExpirer{lifted: 3}
	job := New(nil, nil, bans, 0, nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if bans.calls != 1 {
		t.Fatalf("expected one expire pass, got %d", bans.calls)
	}
}

func TestRunStopsOnSweepError(t *testing.T) {
	cooldowns := &fakeCooldownSweeper{err: errors.New("pg down")}
	bans := &fakeBanExpirer{}
	job := New(cooldowns, nil, bans, 0, nil)

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error from failed sweep")
	}
	if bans.calls != 0 {
		t.Fatalf("later sweeps should not run after a failure")
	}
}

type fakeCooldownSweeper struct {
	until []time.Time
	err   error
}

func (f *fakeCooldownSweeper) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var kept []time.Time
	var removed int64
	for _, u := range f.until {
		if u.After(cutoff) {
			kept = append(kept, u)
		} else {
			removed++
		}
	}
	f.until = kept
	return removed, nil
}

type fakeActivitySweeper struct {
	cutoff time.Time
}

func (f *fakeActivitySweeper) DeleteResolvedOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 0, nil
}

type fakeBanExpirer struct {
	lifted int
	calls  int
}

func (f *fakeBanExpirer) ExpireLapsedBans(context.Context) (int, error) {
	f.calls++
	return f.lifted, nil
}
