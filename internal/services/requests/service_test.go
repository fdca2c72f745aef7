package requests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
	blockssvc "github.com/prymskiwen/crewvar-sub001/internal/services/blocks"
	privacysvc "github.com/prymskiwen/crewvar-sub001/internal/services/privacy"
)

type fakeRunner struct{}

func (fakeRunner) InTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

type memRequestStore struct {
	nextID  int64
	records map[int64]pgrepo.RequestRecord
}

func newMemRequestStore() *memRequestStore {
	return &memRequestStore{nextID: 1, records: map[int64]pgrepo.RequestRecord{}}
}

func (s *memRequestStore) Create(_ context.Context, _ pgx.Tx, from, to int64, message string, now time.Time) (pgrepo.RequestRecord, error) {
	rec := pgrepo.RequestRecord{
		ID:         s.nextID,
		FromUserID: from,
		ToUserID:   to,
		Status:     "pending",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if message != "" {
		rec.Message = &message
	}
	s.records[rec.ID] = rec
	s.nextID++
	return rec, nil
}

func (s *memRequestStore) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id int64) (pgrepo.RequestRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return pgrepo.RequestRecord{}, pgrepo.ErrRequestNotFound
	}
	return rec, nil
}

func (s *memRequestStore) GetPendingBetween(_ context.Context, _ pgx.Tx, a, b int64) (pgrepo.RequestRecord, error) {
	for _, rec := range s.records {
		if rec.Status != "pending" {
			continue
		}
		if (rec.FromUserID == a && rec.ToUserID == b) || (rec.FromUserID == b && rec.ToUserID == a) {
			return rec, nil
		}
	}
	return pgrepo.RequestRecord{}, pgrepo.ErrRequestNotFound
}

func (s *memRequestStore) UpdateStatus(_ context.Context, _ pgx.Tx, id int64, status string, now time.Time) error {
	rec, ok := s.records[id]
	if !ok || rec.Status != "pending" {
		return pgrepo.ErrRequestNotFound
	}
	rec.Status = status
	rec.UpdatedAt = now
	s.records[id] = rec
	return nil
}

func (s *memRequestStore) DeleteByID(_ context.Context, _ pgx.Tx, id int64) error {
	if _, ok := s.records[id]; !ok {
		return pgrepo.ErrRequestNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *memRequestStore) ListIncoming(_ context.Context, to int64, _ int) ([]pgrepo.RequestRecord, error) {
	var out []pgrepo.RequestRecord
	for _, rec := range s.records {
		if rec.ToUserID == to && rec.Status == "pending" {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memRequestStore) ListOutgoing(_ context.Context, from int64, _ int) ([]pgrepo.RequestRecord, error) {
	var out []pgrepo.RequestRecord
	for _, rec := range s.records {
		if rec.FromUserID == from && rec.Status == "pending" {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memConnectionStore struct {
	nextID  int64
	records map[[2]int64]pgrepo.ConnectionRecord
}

func newMemConnectionStore() *memConnectionStore {
	return &memConnectionStore{nextID: 1, records: map[[2]int64]pgrepo.ConnectionRecord{}}
}

func pairKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

func (s *memConnectionStore) Activate(_ context.Context, _ pgx.Tx, a, b int64, now time.Time) (pgrepo.ConnectionRecord, error) {
	key := pairKey(a, b)
	if rec, ok := s.records[key]; ok {
		rec.Status = "active"
		s.records[key] = rec
		return rec, nil
	}
	rec := pgrepo.ConnectionRecord{
		ID:        s.nextID,
		UserLoID:  key[0],
		UserHiID:  key[1],
		Status:    "active",
		CreatedAt: now,
	}
	s.records[key] = rec
	s.nextID++
	return rec, nil
}

func (s *memConnectionStore) MarkBlockedBetween(_ context.Context, _ pgx.Tx, a, b int64) (bool, error) {
	key := pairKey(a, b)
	rec, ok := s.records[key]
	if !ok || rec.Status != "active" {
		return false, nil
	}
	rec.Status = "blocked"
	s.records[key] = rec
	return true, nil
}

func (s *memConnectionStore) GetBetween(_ context.Context, a, b int64) (pgrepo.ConnectionRecord, error) {
	rec, ok := s.records[pairKey(a, b)]
	if !ok {
		return pgrepo.ConnectionRecord{}, pgrepo.ErrConnectionNotFound
	}
	return rec, nil
}

func (s *memConnectionStore) ListActiveForUser(_ context.Context, userID int64, _ int) ([]pgrepo.ConnectionRecord, error) {
	var out []pgrepo.ConnectionRecord
	for _, rec := range s.records {
		if rec.Status == "active" && (rec.UserLoID == userID || rec.UserHiID == userID) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memCooldownStore struct {
	until map[[2]int64]time.Time
}

func newMemCooldownStore() *memCooldownStore {
	return &memCooldownStore{until: map[[2]int64]time.Time{}}
}

func (s *memCooldownStore) Upsert(_ context.Context, _ pgx.Tx, decliner, requester int64, _, cooldownUntil time.Time, _ int) error {
	s.until[[2]int64{decliner, requester}] = cooldownUntil
	return nil
}

func (s *memCooldownStore) ActiveUntil(_ context.Context, decliner, requester int64, now time.Time) (*time.Time, error) {
	until, ok := s.until[[2]int64{decliner, requester}]
	if !ok || !until.After(now) {
		return nil, nil
	}
	return &until, nil
}

// memBlockEdges backs both the privacy gate and the blocks service so
// cross-service scenarios see one set of edges.
type memBlockEdges struct {
	nextID  int64
	records map[[2]int64]pgrepo.BlockRecord
}

func newMemBlockEdges() *memBlockEdges {
	return &memBlockEdges{nextID: 1, records: map[[2]int64]pgrepo.BlockRecord{}}
}

func (s *memBlockEdges) Upsert(_ context.Context, _ pgx.Tx, blocker, blocked int64, reason string, now time.Time) (pgrepo.BlockRecord, bool, error) {
	key := [2]int64{blocker, blocked}
	if rec, ok := s.records[key]; ok {
		return rec, false, nil
	}
	rec := pgrepo.BlockRecord{
		ID:            s.nextID,
		BlockerUserID: blocker,
		BlockedUserID: blocked,
		Mutual:        true,
		CreatedAt:     now,
	}
	if reason != "" {
		rec.Reason = &reason
	}
	s.records[key] = rec
	s.nextID++
	return rec, true, nil
}

func (s *memBlockEdges) Delete(_ context.Context, _ pgx.Tx, blocker, blocked int64) (bool, error) {
	key := [2]int64{blocker, blocked}
	if _, ok := s.records[key]; !ok {
		return false, nil
	}
	delete(s.records, key)
	return true, nil
}

func (s *memBlockEdges) ExistsBetween(_ context.Context, a, b int64) (bool, error) {
	_, forward := s.records[[2]int64{a, b}]
	_, reverse := s.records[[2]int64{b, a}]
	return forward || reverse, nil
}

func (s *memBlockEdges) ListByBlocker(_ context.Context, blocker int64, _ int) ([]pgrepo.BlockRecord, error) {
	var out []pgrepo.BlockRecord
	for _, rec := range s.records {
		if rec.BlockerUserID == blocker {
			out = append(out, rec)
		}
	}
	return out, nil
}

type stubPrivacyGate struct {
	edges     *memBlockEdges
	cooldowns *memCooldownStore
	silent    map[int64]bool
	now       func() time.Time
}

func (g *stubPrivacyGate) IsBlocked(ctx context.Context, a, b int64) (bool, error) {
	return g.edges.ExistsBetween(ctx, a, b)
}

func (g *stubPrivacyGate) CooldownUntil(ctx context.Context, decliner, requester int64) (*time.Time, error) {
	return g.cooldowns.ActiveUntil(ctx, decliner, requester, g.now())
}

func (g *stubPrivacyGate) GetSettings(_ context.Context, userID int64) (pgrepo.PrivacySettingsRecord, error) {
	return pgrepo.PrivacySettingsRecord{
		UserID:                  userID,
		DeclineRequestsSilently: g.silent[userID],
	}, nil
}

type recordingNotifier struct {
	received []int64
	accepted []int64
	declined []int64
}

func (n *recordingNotifier) RequestReceived(_ context.Context, _, _, requestID int64) {
	n.received = append(n.received, requestID)
}

func (n *recordingNotifier) RequestAccepted(_ context.Context, _, _, requestID, _ int64) {
	n.accepted = append(n.accepted, requestID)
}

func (n *recordingNotifier) RequestDeclined(_ context.Context, _, _, requestID int64) {
	n.declined = append(n.declined, requestID)
}

type countingRecorder struct {
	sends map[int64]int
}

func (r *countingRecorder) RecordRequestSent(_ context.Context, userID int64) {
	if r.sends == nil {
		r.sends = map[int64]int{}
	}
	r.sends[userID]++
}

type fixture struct {
	svc         *Service
	requests    *memRequestStore
	connections *memConnectionStore
	cooldowns   *memCooldownStore
	blocks      *memBlockEdges
	privacy     *stubPrivacyGate
	notifier    *recordingNotifier
	recorder    *countingRecorder
	clock       *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &start

	requests := newMemRequestStore()
	connections := newMemConnectionStore()
	cooldowns := newMemCooldownStore()
	blocks := newMemBlockEdges()
	privacy := &stubPrivacyGate{
		edges:     blocks,
		cooldowns: cooldowns,
		silent:    map[int64]bool{},
		now:       func() time.Time { return *clock },
	}
	notifier := &recordingNotifier{}
	recorder := &countingRecorder{}

	svc := NewService(Dependencies{
		Runner:      fakeRunner{},
		Requests:    requests,
		Connections: connections,
		Cooldowns:   cooldowns,
		Privacy:     privacy,
		Notifier:    notifier,
		Recorder:    recorder,
	}, Config{})
	svc.now = func() time.Time { return *clock }

	return &fixture{
		svc:         svc,
		requests:    requests,
		connections: connections,
		cooldowns:   cooldowns,
		blocks:      blocks,
		privacy:     privacy,
		notifier:    notifier,
		recorder:    recorder,
		clock:       clock,
	}
}

func TestSendCreatesPendingAndNotifies(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.Send(context.Background(), 1, 2, "hi from deck 4")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if rec.Status != "pending" {
		t.Fatalf("expected pending status, got %q", rec.Status)
	}
	if len(f.notifier.received) != 1 {
		t.Fatalf("expected 1 received notification, got %d", len(f.notifier.received))
	}
	if f.recorder.sends[1] != 1 {
		t.Fatalf("expected send recorded for detector")
	}
}

func TestSendRejectsDuplicatePendingEitherDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Send(ctx, 1, 2, ""); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := f.svc.Send(ctx, 1, 2, ""); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := f.svc.Send(ctx, 2, 1, ""); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected duplicate error for reverse direction, got %v", err)
	}
}

func TestSendBlockedPairRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, err := f.blocks.Upsert(ctx, nil, 2, 1, "", *f.clock); err != nil {
		t.Fatalf("seed block edge: %v", err)
	}

	if _, err := f.svc.Send(ctx, 1, 2, ""); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked for blocked pair, got %v", err)
	}
}

func TestAcceptCreatesConnectionOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Send(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	result, err := f.svc.Accept(ctx, rec.ID, 2)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !result.Transitioned {
		t.Fatalf("expected first accept to transition")
	}
	if result.Connection.ID == 0 {
		t.Fatalf("expected a connection")
	}
	if len(f.notifier.accepted) != 1 {
		t.Fatalf("expected 1 accepted notification, got %d", len(f.notifier.accepted))
	}

	again, err := f.svc.Accept(ctx, rec.ID, 2)
	if err != nil {
		t.Fatalf("repeat accept: %v", err)
	}
	if again.Transitioned {
		t.Fatalf("repeat accept must not transition")
	}
	if again.Connection.ID != result.Connection.ID {
		t.Fatalf("repeat accept returned a different connection")
	}
	if len(f.notifier.accepted) != 1 {
		t.Fatalf("repeat accept must not notify again")
	}
}

func TestAcceptByNonRecipientRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Send(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := f.svc.Accept(ctx, rec.ID, 1); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("sender must not accept own request, got %v", err)
	}
	if _, err := f.svc.Accept(ctx, rec.ID, 3); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("third party must not accept, got %v", err)
	}
}

func TestDeclineOpensCooldownAndBlocksResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Send(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.svc.Decline(ctx, rec.ID, 2); err != nil {
		t.Fatalf("decline: %v", err)
	}

	_, err = f.svc.Send(ctx, 1, 2, "")
	var cooldownErr *CooldownError
	if !errors.As(err, &cooldownErr) {
		t.Fatalf("expected cooldown error on resend, got %v", err)
	}
	wantUntil := f.clock.Add(24 * time.Hour)
	if !cooldownErr.Until.Equal(wantUntil) {
		t.Fatalf("cooldown until = %v, want %v", cooldownErr.Until, wantUntil)
	}

	*f.clock = f.clock.Add(25 * time.Hour)
	if _, err := f.svc.Send(ctx, 1, 2, ""); err != nil {
		t.Fatalf("send after cooldown expiry: %v", err)
	}
}

func TestDeclineNotificationFollowsSilentSetting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.privacy.silent[2] = true
	rec, err := f.svc.Send(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.svc.Decline(ctx, rec.ID, 2); err != nil {
		t.Fatalf("silent decline: %v", err)
	}
	if len(f.notifier.declined) != 0 {
		t.Fatalf("silent decline must not notify")
	}

	*f.clock = f.clock.Add(25 * time.Hour)
	f.privacy.silent[4] = false
	rec2, err := f.svc.Send(ctx, 3, 4, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.svc.Decline(ctx, rec2.ID, 4); err != nil {
		t.Fatalf("loud decline: %v", err)
	}
	if len(f.notifier.declined) != 1 {
		t.Fatalf("non-silent decline should notify, got %d", len(f.notifier.declined))
	}
}

func TestDeclineTerminalRequestRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Send(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.svc.Accept(ctx, rec.ID, 2); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.Decline(ctx, rec.ID, 2); !errors.Is(err, ErrAlreadyHandled) {
		t.Fatalf("declining an accepted request should fail, got %v", err)
	}
}

func TestCancelDeletesPendingWithoutCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Send(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := f.svc.Cancel(ctx, rec.ID, 2); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("recipient must not cancel, got %v", err)
	}
	if err := f.svc.Cancel(ctx, rec.ID, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(f.requests.records) != 0 {
		t.Fatalf("cancel should delete the request row")
	}

	if _, err := f.svc.Send(ctx, 1, 2, ""); err != nil {
		t.Fatalf("resend after cancel should be clean: %v", err)
	}
}

func TestSendRejectsExistingConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Send(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.svc.Accept(ctx, rec.ID, 2); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.Send(ctx, 1, 2, ""); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
}

type memSettingsStore struct {
	records map[int64]pgrepo.PrivacySettingsRecord
}

func (s *memSettingsStore) Create(_ context.Context, userID int64, now time.Time) error {
	if _, ok := s.records[userID]; !ok {
		s.records[userID] = pgrepo.PrivacySettingsRecord{UserID: userID, Active: true, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (s *memSettingsStore) Get(_ context.Context, userID int64) (pgrepo.PrivacySettingsRecord, error) {
	rec, ok := s.records[userID]
	if !ok {
		return pgrepo.PrivacySettingsRecord{}, pgrepo.ErrPrivacySettingsNotFound
	}
	return rec, nil
}

func (s *memSettingsStore) UpdatePreferences(_ context.Context, userID int64, _ pgrepo.PrivacyPreferencesUpdate, _ time.Time) (pgrepo.PrivacySettingsRecord, error) {
	return s.records[userID], nil
}

func (s *memSettingsStore) SetVerification(context.Context, int64, string, time.Time) error {
	return nil
}

func (s *memSettingsStore) TouchLastActive(context.Context, int64, time.Time) error {
	return nil
}

func TestSendDoesNotRequireRosterVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings := &memSettingsStore{records: map[int64]pgrepo.PrivacySettingsRecord{
		1: {UserID: 1, Verified: true, Active: true},
		2: {UserID: 2, Verified: false, Active: true},
	}}
	f.svc.privacy = privacysvc.NewService(privacysvc.Dependencies{
		Settings:  settings,
		Blocks:    f.blocks,
		Cooldowns: f.cooldowns,
	})

	rec, err := f.svc.Send(ctx, 1, 2, "sailing together next month?")
	if err != nil {
		t.Fatalf("send to an unverified user must go through: %v", err)
	}
	if rec.Status != "pending" {
		t.Fatalf("expected pending request, got %q", rec.Status)
	}

	if _, _, err := f.blocks.Upsert(ctx, nil, 2, 1, "", *f.clock); err != nil {
		t.Fatalf("seed block edge: %v", err)
	}
	if _, err := f.svc.Send(ctx, 1, 2, ""); !errors.Is(err, ErrBlocked) {
		t.Fatalf("block edge should still veto the send, got %v", err)
	}
}

func TestReconnectAfterUnblockNeedsFreshCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Send(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.svc.Accept(ctx, first.ID, 2); err != nil {
		t.Fatalf("accept: %v", err)
	}

	blocker := blockssvc.NewService(blockssvc.Dependencies{
		Runner:      fakeRunner{},
		Blocks:      f.blocks,
		Connections: f.connections,
		Requests:    f.requests,
	}, blockssvc.Config{})

	if _, err := blocker.Block(ctx, 2, 1, ""); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := f.svc.Send(ctx, 1, 2, ""); !errors.Is(err, ErrBlocked) {
		t.Fatalf("send while blocked should fail, got %v", err)
	}

	if err := blocker.Unblock(ctx, 2, 1); err != nil {
		t.Fatalf("unblock: %v", err)
	}

	conns, err := f.svc.ListConnections(ctx, 1)
	if err != nil {
		t.Fatalf("list connections: %v", err)
	}
	if len(conns) != 0 {
		t.Fatalf("unblock must not reactivate the connection")
	}

	second, err := f.svc.Send(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("resend after unblock should start a fresh cycle: %v", err)
	}
	res, err := f.svc.Accept(ctx, second.ID, 2)
	if err != nil {
		t.Fatalf("accept after unblock: %v", err)
	}
	if res.Connection.Status != "active" {
		t.Fatalf("expected reactivated connection, got %q", res.Connection.Status)
	}

	conns, err = f.svc.ListConnections(ctx, 1)
	if err != nil {
		t.Fatalf("list connections: %v", err)
	}
	if len(conns) != 1 {
		t.Fatalf("expected one active connection after the new cycle, got %d", len(conns))
	}
}

type blockedLimiter struct{}

func (blockedLimiter) AllowRequestSend(_ context.Context, _ int64) (int64, bool, error) {
	return 30, false, nil
}

func TestSendRateLimited(t *testing.T) {
	f := newFixture(t)
	f.svc.rateLimiter = blockedLimiter{}

	_, err := f.svc.Send(context.Background(), 1, 2, "")
	var tooFast *TooFastError
	if !errors.As(err, &tooFast) {
		t.Fatalf("expected TooFastError, got %v", err)
	}
	if tooFast.RetryAfterSec != 30 {
		t.Fatalf("retry after = %d, want 30", tooFast.RetryAfterSec)
	}
}
