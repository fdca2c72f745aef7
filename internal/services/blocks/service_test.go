package blocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
)

type fakeRunner struct{}

func (fakeRunner) InTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func pairKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

type memBlockStore struct {
	nextID  int64
	records map[[2]int64]pgrepo.BlockRecord
}

func newMemBlockStore() *memBlockStore {
	return &memBlockStore{nextID: 1, records: map[[2]int64]pgrepo.BlockRecord{}}
}

func (s *memBlockStore) Upsert(_ context.Context, _ pgx.Tx, blocker, blocked int64, reason string, now time.Time) (pgrepo.BlockRecord, bool, error) {
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

func (s *memBlockStore) Delete(_ context.Context, _ pgx.Tx, blocker, blocked int64) (bool, error) {
	key := [2]int64{blocker, blocked}
	if _, ok := s.records[key]; !ok {
		return false, nil
	}
	delete(s.records, key)
	return true, nil
}

func (s *memBlockStore) ExistsBetween(_ context.Context, a, b int64) (bool, error) {
	_, forward := s.records[[2]int64{a, b}]
	_, reverse := s.records[[2]int64{b, a}]
	return forward || reverse, nil
}

func (s *memBlockStore) ListByBlocker(_ context.Context, blocker int64, _ int) ([]pgrepo.BlockRecord, error) {
	var out []pgrepo.BlockRecord
	for _, rec := range s.records {
		if rec.BlockerUserID == blocker {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memConnectionStore struct {
	status map[[2]int64]string
}

func (s *memConnectionStore) MarkBlockedBetween(_ context.Context, _ pgx.Tx, a, b int64) (bool, error) {
	key := pairKey(a, b)
	if s.status[key] != "active" {
		return false, nil
	}
	s.status[key] = "blocked"
	return true, nil
}

type memRequestStore struct {
	records map[int64]pgrepo.RequestRecord
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

func (s *memRequestStore) UpdateStatus(_ context.Context, _ pgx.Tx, id int64, status string, _ time.Time) error {
	rec, ok := s.records[id]
	if !ok || rec.Status != "pending" {
		return pgrepo.ErrRequestNotFound
	}
	rec.Status = status
	s.records[id] = rec
	return nil
}

func newServiceForTest(blocks *memBlockStore, conns *memConnectionStore, reqs *memRequestStore) *Service {
	if blocks == nil {
		blocks = newMemBlockStore()
	}
	if conns == nil {
		conns = &memConnectionStore{status: map[[2]int64]string{}}
	}
	if reqs == nil {
		reqs = &memRequestStore{records: map[int64]pgrepo.RequestRecord{}}
	}
	return NewService(Dependencies{
		Runner:      fakeRunner{},
		Blocks:      blocks,
		Connections: conns,
		Requests:    reqs,
	}, Config{})
}

func TestBlockCascadesConnectionAndPendingRequest(t *testing.T) {
	blocks := newMemBlockStore()
	conns := &memConnectionStore{status: map[[2]int64]string{pairKey(1, 2): "active"}}
	reqs := &memRequestStore{records: map[int64]pgrepo.RequestRecord{
		10: {ID: 10, FromUserID: 2, ToUserID: 1, Status: "pending"},
	}}
	svc := newServiceForTest(blocks, conns, reqs)

	result, err := svc.Block(context.Background(), 1, 2, "harassing messages")
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if !result.Created {
		t.Fatalf("expected new block edge")
	}
	if !result.Block.Mutual {
		t.Fatalf("block edge must enforce both directions")
	}
	if conns.status[pairKey(1, 2)] != "blocked" {
		t.Fatalf("connection should be blocked, got %q", conns.status[pairKey(1, 2)])
	}
	if reqs.records[10].Status != "blocked" {
		t.Fatalf("pending request should close as blocked, got %q", reqs.records[10].Status)
	}
}

func TestBlockIsIdempotent(t *testing.T) {
	svc := newServiceForTest(nil, nil, nil)
	ctx := context.Background()

	first, err := svc.Block(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("first block: %v", err)
	}
	second, err := svc.Block(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("second block: %v", err)
	}
	if second.Created {
		t.Fatalf("repeat block must not create a new edge")
	}
	if second.Block.ID != first.Block.ID {
		t.Fatalf("repeat block returned a different edge")
	}
}

func TestUnblockRemovesOnlyOwnEdge(t *testing.T) {
	blocks := newMemBlockStore()
	svc := newServiceForTest(blocks, nil, nil)
	ctx := context.Background()

	if _, err := svc.Block(ctx, 1, 2, ""); err != nil {
		t.Fatalf("block: %v", err)
	}

	if err := svc.Unblock(ctx, 2, 1); !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("blocked user must not remove the blocker's edge, got %v", err)
	}
	if err := svc.Unblock(ctx, 1, 2); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if err := svc.Unblock(ctx, 1, 2); !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("repeat unblock should report missing edge, got %v", err)
	}
}

func TestUnblockDoesNotResurrectConnection(t *testing.T) {
	blocks := newMemBlockStore()
	conns := &memConnectionStore{status: map[[2]int64]string{pairKey(1, 2): "active"}}
	svc := newServiceForTest(blocks, conns, nil)
	ctx := context.Background()

	if _, err := svc.Block(ctx, 1, 2, ""); err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := svc.Unblock(ctx, 1, 2); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if conns.status[pairKey(1, 2)] != "blocked" {
		t.Fatalf("unblock must not reactivate the connection, got %q", conns.status[pairKey(1, 2)])
	}

	blocked, err := svc.IsBlocked(ctx, 1, 2)
	if err != nil {
		t.Fatalf("is blocked: %v", err)
	}
	if blocked {
		t.Fatalf("edge should be gone after unblock")
	}
}
