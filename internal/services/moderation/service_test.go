package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"

	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
	redrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/redis"
)

type fakeRunner struct{}

func (fakeRunner) InTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

type memReportStore struct {
	nextID  int64
	records map[int64]pgrepo.ReportRecord
}

func newMemReportStore() *memReportStore {
	return &memReportStore{nextID: 1, records: map[int64]pgrepo.ReportRecord{}}
}

func (s *memReportStore) Create(_ context.Context, reporter, reported int64, reportType, description, status, priority string, evidenceKeys []string, now time.Time) (pgrepo.ReportRecord, error) {
	rec := pgrepo.ReportRecord{
		ID:             s.nextID,
		ReporterUserID: reporter,
		ReportedUserID: reported,
		ReportType:     reportType,
		Description:    description,
		Status:         status,
		Priority:       priority,
		EvidenceKeys:   evidenceKeys,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.records[rec.ID] = rec
	s.nextID++
	return rec, nil
}

func (s *memReportStore) GetByID(_ context.Context, id int64) (pgrepo.ReportRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return pgrepo.ReportRecord{}, pgrepo.ErrReportNotFound
	}
	return rec, nil
}

func (s *memReportStore) UpdateStatus(_ context.Context, id int64, status string, reviewedBy int64, notes string, now time.Time) (pgrepo.ReportRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return pgrepo.ReportRecord{}, pgrepo.ErrReportNotFound
	}
	rec.Status = status
	rec.ReviewedByUserID = &reviewedBy
	if notes != "" {
		rec.ResolutionNotes = &notes
	}
	rec.UpdatedAt = now
	s.records[id] = rec
	return rec, nil
}

func (s *memReportStore) List(_ context.Context, status string, _ int) ([]pgrepo.ReportRecord, error) {
	var out []pgrepo.ReportRecord
	for _, rec := range s.records {
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memReportStore) ListAgainstUser(_ context.Context, reported int64, _ int) ([]pgrepo.ReportRecord, error) {
	var out []pgrepo.ReportRecord
	for _, rec := range s.records {
		if rec.ReportedUserID == reported {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memReportStore) CountsByStatus(_ context.Context) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts, nil
}

func (s *memReportStore) CountsByType(_ context.Context) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, rec := range s.records {
		counts[rec.ReportType]++
	}
	return counts, nil
}

type memActionStore struct {
	nextID  int64
	records map[int64]pgrepo.ActionRecord
}

func newMemActionStore() *memActionStore {
	return &memActionStore{nextID: 1, records: map[int64]pgrepo.ActionRecord{}}
}

func (s *memActionStore) Create(_ context.Context, _ pgx.Tx, target int64, actionType, reason string, performedBy int64, relatedReportID *int64, expiresAt *time.Time, now time.Time) (pgrepo.ActionRecord, error) {
	rec := pgrepo.ActionRecord{
		ID:              s.nextID,
		TargetUserID:    target,
		ActionType:      actionType,
		Reason:          reason,
		PerformedByID:   performedBy,
		RelatedReportID: relatedReportID,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
	}
	s.records[rec.ID] = rec
	s.nextID++
	return rec, nil
}

func (s *memActionStore) ListForUser(_ context.Context, target int64, _ int) ([]pgrepo.ActionRecord, error) {
	var out []pgrepo.ActionRecord
	for _, rec := range s.records {
		if rec.TargetUserID == target {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memActionStore) CountActiveBans(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, rec := range s.records {
		if rec.ActionType != "temporary_ban" && rec.ActionType != "permanent_ban" {
			continue
		}
		if rec.RevokedAt != nil {
			continue
		}
		if rec.ExpiresAt != nil && !rec.ExpiresAt.After(now) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *memActionStore) ExpireTemporaryBans(_ context.Context, _ pgx.Tx, now time.Time) ([]int64, error) {
	var userIDs []int64
	for id, rec := range s.records {
		if rec.ActionType != "temporary_ban" || rec.RevokedAt != nil {
			continue
		}
		if rec.ExpiresAt == nil || rec.ExpiresAt.After(now) {
			continue
		}
		at := now
		rec.RevokedAt = &at
		s.records[id] = rec
		userIDs = append(userIDs, rec.TargetUserID)
	}
	return userIDs, nil
}

type memActivityStore struct {
	nextID  int64
	records map[int64]pgrepo.ActivityRecord
}

func newMemActivityStore() *memActivityStore {
	return &memActivityStore{nextID: 1, records: map[int64]pgrepo.ActivityRecord{}}
}

func (s *memActivityStore) Create(_ context.Context, userID int64, activityType, severity, details string, now time.Time) (pgrepo.ActivityRecord, error) {
	rec := pgrepo.ActivityRecord{
		ID:           s.nextID,
		UserID:       userID,
		ActivityType: activityType,
		Severity:     severity,
		Details:      details,
		CreatedAt:    now,
	}
	s.records[rec.ID] = rec
	s.nextID++
	return rec, nil
}

func (s *memActivityStore) MarkResolved(_ context.Context, id, resolvedBy int64, now time.Time) (pgrepo.ActivityRecord, error) {
	rec, ok := s.records[id]
	if !ok || rec.Resolved {
		return pgrepo.ActivityRecord{}, pgrepo.ErrActivityNotFound
	}
	rec.Resolved = true
	rec.ResolvedByUserID = &resolvedBy
	at := now
	rec.ResolvedAt = &at
	s.records[id] = rec
	return rec, nil
}

func (s *memActivityStore) ListOpen(_ context.Context, _ int) ([]pgrepo.ActivityRecord, error) {
	var out []pgrepo.ActivityRecord
	for _, rec := range s.records {
		if !rec.Resolved {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memActivityStore) CountOpen(_ context.Context) (int64, error) {
	var count int64
	for _, rec := range s.records {
		if !rec.Resolved {
			count++
		}
	}
	return count, nil
}

type recordingSettingsStore struct {
	active map[int64]bool
}

func (s *recordingSettingsStore) SetActive(_ context.Context, _ pgx.Tx, userID int64, active bool, _ time.Time) error {
	if s.active == nil {
		s.active = map[int64]bool{}
	}
	s.active[userID] = active
	return nil
}

type fixture struct {
	svc        *Service
	reports    *memReportStore
	actions    *memActionStore
	activities *memActivityStore
	settings   *recordingSettingsStore
}

func newFixture(t *testing.T, window WindowStore, cfg Config) *fixture {
	t.Helper()

	reports := newMemReportStore()
	actions := newMemActionStore()
	activities := newMemActivityStore()
	settings := &recordingSettingsStore{active: map[int64]bool{}}

	svc := NewService(Dependencies{
		Runner:     fakeRunner{},
		Reports:    reports,
		Actions:    actions,
		Activities: activities,
		Settings:   settings,
		Window:     window,
	}, cfg)

	return &fixture{svc: svc, reports: reports, actions: actions, activities: activities, settings: settings}
}

func TestSubmitReportDerivesPriority(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()

	harassment, err := f.svc.SubmitReport(ctx, 1, 2, "harassment", "repeated unwanted messages", nil)
	if err != nil {
		t.Fatalf("submit harassment report: %v", err)
	}
	if harassment.Priority != "high" {
		t.Fatalf("harassment priority = %q, want high", harassment.Priority)
	}

	spam, err := f.svc.SubmitReport(ctx, 1, 3, "spam", "link spam in bio", nil)
	if err != nil {
		t.Fatalf("submit spam report: %v", err)
	}
	if spam.Priority != "medium" {
		t.Fatalf("spam priority = %q, want medium", spam.Priority)
	}
}

func TestSubmitReportRejectsSelfAndUnknownType(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()

	if _, err := f.svc.SubmitReport(ctx, 1, 1, "spam", "self report", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("self report should fail validation, got %v", err)
	}
	if _, err := f.svc.SubmitReport(ctx, 1, 2, "bad_vibes", "details", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown type should fail validation, got %v", err)
	}
}

func TestReportStatusTransitions(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()

	rec, err := f.svc.SubmitReport(ctx, 1, 2, "spam", "spam messages", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.svc.UpdateReportStatus(ctx, rec.ID, "resolved", 99, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending->resolved should be rejected, got %v", err)
	}

	underReview, err := f.svc.UpdateReportStatus(ctx, rec.ID, "under_review", 99, "")
	if err != nil {
		t.Fatalf("pending->under_review: %v", err)
	}
	if underReview.Status != "under_review" {
		t.Fatalf("status = %q, want under_review", underReview.Status)
	}

	resolved, err := f.svc.UpdateReportStatus(ctx, rec.ID, "resolved", 99, "banned the account")
	if err != nil {
		t.Fatalf("under_review->resolved: %v", err)
	}
	if resolved.ResolutionNotes == nil || *resolved.ResolutionNotes != "banned the account" {
		t.Fatalf("resolution notes not stored: %+v", resolved.ResolutionNotes)
	}

	if _, err := f.svc.UpdateReportStatus(ctx, rec.ID, "under_review", 99, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resolved report must be immutable, got %v", err)
	}
}

func TestBanActionDeactivatesTarget(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()

	rec, err := f.svc.PerformAction(ctx, 5, "permanent_ban", "ban evasion", 99, nil)
	if err != nil {
		t.Fatalf("perform ban: %v", err)
	}
	if rec.ExpiresAt != nil {
		t.Fatalf("permanent ban must not expire")
	}
	if active, ok := f.settings.active[5]; !ok || active {
		t.Fatalf("ban should deactivate the target, got active=%v ok=%v", active, ok)
	}
}

func TestTemporaryBanGetsExpiry(t *testing.T) {
	f := newFixture(t, nil, Config{TempBanDuration: 48 * time.Hour})
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return start }

	rec, err := f.svc.PerformAction(context.Background(), 5, "temporary_ban", "spamming", 99, nil)
	if err != nil {
		t.Fatalf("perform temp ban: %v", err)
	}
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(start.Add(48*time.Hour)) {
		t.Fatalf("temp ban expiry = %v, want %v", rec.ExpiresAt, start.Add(48*time.Hour))
	}
}

func TestWarningDoesNotTouchActiveFlag(t *testing.T) {
	f := newFixture(t, nil, Config{})

	if _, err := f.svc.PerformAction(context.Background(), 5, "warning", "first offense", 99, nil); err != nil {
		t.Fatalf("perform warning: %v", err)
	}
	if _, touched := f.settings.active[5]; touched {
		t.Fatalf("warning must not change the active flag")
	}
}

func TestRapidRequestDetectionFiresOncePerWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	window := redrepo.NewWindowRepo(client)
	f := newFixture(t, window, Config{DetectionThreshold: 15, DetectionWindow: 10 * time.Minute})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	ctx := context.Background()
	for i := 0; i < 16; i++ {
		f.svc.RecordRequestSent(ctx, 7)
	}

	open, err := f.svc.ListOpenActivities(ctx)
	if err != nil {
		t.Fatalf("list open activities: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected exactly one rapid-request entry, got %d", len(open))
	}
	if open[0].ActivityType != "rapid_requests" {
		t.Fatalf("activity type = %q", open[0].ActivityType)
	}
	if open[0].Severity != "medium" {
		t.Fatalf("rapid requests severity = %q, want medium", open[0].Severity)
	}

	// The window reset on fire, but the 16th send above already counts
	// toward the next burst. It takes 14 more to trip the threshold.
	for i := 0; i < 13; i++ {
		f.svc.RecordRequestSent(ctx, 7)
	}
	open, err = f.svc.ListOpenActivities(ctx)
	if err != nil {
		t.Fatalf("list open activities: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("sub-threshold burst must not fire again, got %d entries", len(open))
	}

	f.svc.RecordRequestSent(ctx, 7)
	open, err = f.svc.ListOpenActivities(ctx)
	if err != nil {
		t.Fatalf("list open activities: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("second full burst should fire, got %d entries", len(open))
	}
}

func TestResolveActivity(t *testing.T) {
	f := newFixture(t, nil, Config{})
	ctx := context.Background()

	rec, err := f.svc.RecordActivity(ctx, 7, "fake_profile_indicators", "stock photos")
	if err != nil {
		t.Fatalf("record activity: %v", err)
	}
	if rec.Severity != "high" {
		t.Fatalf("severity = %q, want high", rec.Severity)
	}

	resolved, err := f.svc.ResolveActivity(ctx, rec.ID, 99)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Resolved {
		t.Fatalf("activity should be resolved")
	}
	if _, err := f.svc.ResolveActivity(ctx, rec.ID, 99); !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("double resolve should fail, got %v", err)
	}
}

func TestExpireLapsedBansReactivates(t *testing.T) {
	f := newFixture(t, nil, Config{TempBanDuration: time.Hour})
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := start
	f.svc.now = func() time.Time { return now }

	if _, err := f.svc.PerformAction(context.Background(), 5, "temporary_ban", "cool off", 99, nil); err != nil {
		t.Fatalf("perform temp ban: %v", err)
	}
	if f.settings.active[5] {
		t.Fatalf("target should be deactivated during the ban")
	}

	now = start.Add(2 * time.Hour)
	count, err := f.svc.ExpireLapsedBans(context.Background())
	if err != nil {
		t.Fatalf("expire bans: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expired ban, got %d", count)
	}
	if !f.settings.active[5] {
		t.Fatalf("target should be reactivated after expiry")
	}
}
