package blocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/prymskiwen/crewvar-sub001/internal/domain/enums"
	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrBlockNotFound = errors.New("block not found")
)

type TxRunner interface {
	InTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type BlockStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, blockerUserID, blockedUserID int64, reason string, now time.Time) (pgrepo.BlockRecord, bool, error)
	Delete(ctx context.Context, tx pgx.Tx, blockerUserID, blockedUserID int64) (bool, error)
	ExistsBetween(ctx context.Context, userA, userB int64) (bool, error)
	ListByBlocker(ctx context.Context, blockerUserID int64, limit int) ([]pgrepo.BlockRecord, error)
}

type ConnectionStore interface {
	MarkBlockedBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (bool, error)
}

type RequestStore interface {
	GetPendingBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (pgrepo.RequestRecord, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, requestID int64, status string, now time.Time) error
}

type BlockResult struct {
	Block pgrepo.BlockRecord
	// Created is false when the edge already existed; the cascade still
	// runs so a repeated block converges to the same state.
	Created bool
}

type Config struct {
	ListLimit int
}

type Service struct {
	runner      TxRunner
	blocks      BlockStore
	connections ConnectionStore
	requests    RequestStore
	log         *zap.Logger
	cfg         Config
	now         func() time.Time
}

type Dependencies struct {
	Runner      TxRunner
	Blocks      BlockStore
	Connections ConnectionStore
	Requests    RequestStore
	Logger      *zap.Logger
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 100
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		runner:      deps.Runner,
		blocks:      deps.Blocks,
		connections: deps.Connections,
		requests:    deps.Requests,
		log:         log,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Block writes the mutual block edge and cascades in the same
// transaction: the active connection flips to blocked and a pending
// request between the pair is closed as blocked, with no decline
// cooldown and no notification to either side.
func (s *Service) Block(ctx context.Context, blockerID, blockedID int64, reason string) (BlockResult, error) {
	if blockerID <= 0 || blockedID <= 0 || blockerID == blockedID {
		return BlockResult{}, ErrValidation
	}

	var result BlockResult
	err := s.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		now := s.now()

		rec, created, err := s.blocks.Upsert(ctx, tx, blockerID, blockedID, reason, now)
		if err != nil {
			return err
		}

		if _, err := s.connections.MarkBlockedBetween(ctx, tx, blockerID, blockedID); err != nil {
			return err
		}

		pending, err := s.requests.GetPendingBetween(ctx, tx, blockerID, blockedID)
		if err == nil {
			if err := s.requests.UpdateStatus(ctx, tx, pending.ID, string(enums.RequestStatusBlocked), now); err != nil {
				return err
			}
		} else if !errors.Is(err, pgrepo.ErrRequestNotFound) {
			return fmt.Errorf("pending request lookup: %w", err)
		}

		result = BlockResult{Block: rec, Created: created}
		return nil
	})
	if err != nil {
		return BlockResult{}, err
	}

	s.log.Info("user blocked",
		zap.Int64("blocker_id", blockerID),
		zap.Int64("blocked_id", blockedID),
		zap.Bool("created", result.Created),
	)

	return result, nil
}

// Unblock removes the caller's own edge. The connection stays blocked;
// reconnecting requires a fresh request cycle.
func (s *Service) Unblock(ctx context.Context, blockerID, blockedID int64) error {
	if blockerID <= 0 || blockedID <= 0 || blockerID == blockedID {
		return ErrValidation
	}

	return s.runner.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		deleted, err := s.blocks.Delete(ctx, tx, blockerID, blockedID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrBlockNotFound
		}
		return nil
	})
}

func (s *Service) ListBlocked(ctx context.Context, blockerID int64) ([]pgrepo.BlockRecord, error) {
	if blockerID <= 0 {
		return nil, ErrValidation
	}

	records, err := s.blocks.ListByBlocker(ctx, blockerID, s.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list blocked users: %w", err)
	}

	return records, nil
}

func (s *Service) IsBlocked(ctx context.Context, userA, userB int64) (bool, error) {
	if userA <= 0 || userB <= 0 {
		return false, ErrValidation
	}

	blocked, err := s.blocks.ExistsBetween(ctx, userA, userB)
	if err != nil {
		return false, fmt.Errorf("check block edge: %w", err)
	}

	return blocked, nil
}
