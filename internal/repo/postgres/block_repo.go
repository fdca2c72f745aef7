package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrBlockNotFound = errors.New("block not found")

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

type BlockRecord struct {
	ID            int64
	BlockerUserID int64
	BlockedUserID int64
	Reason        *string
	Mutual        bool
	CreatedAt     time.Time
}

const blockColumns = `id, blocker_user_id, blocked_user_id, reason, is_mutual, created_at`

func scanBlockRecord(row pgx.Row) (BlockRecord, error) {
	var rec BlockRecord
	err := row.Scan(
		&rec.ID,
		&rec.BlockerUserID,
		&rec.BlockedUserID,
		&rec.Reason,
		&rec.Mutual,
		&rec.CreatedAt,
	)
	return rec, err
}

// Upsert records a directed block edge. The edge is always written with
// is_mutual so enforcement hides both directions. Returns created=false
// when the edge already existed, which callers treat as an idempotent
// success.
func (r *BlockRepo) Upsert(ctx context.Context, tx pgx.Tx, blockerUserID, blockedUserID int64, reason string, now time.Time) (BlockRecord, bool, error) {
	if blockerUserID <= 0 || blockedUserID <= 0 || blockerUserID == blockedUserID {
		return BlockRecord{}, false, fmt.Errorf("invalid block payload")
	}
	if tx == nil {
		return BlockRecord{}, false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var reasonValue *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		reasonValue = &trimmed
	}

	rec, err := scanBlockRecord(tx.QueryRow(ctx, `
INSERT INTO blocked_users (
	blocker_user_id,
	blocked_user_id,
	reason,
	is_mutual,
	created_at
) VALUES ($1, $2, $3, TRUE, $4)
ON CONFLICT (blocker_user_id, blocked_user_id) DO NOTHING
RETURNING `+blockColumns+`
`, blockerUserID, blockedUserID, reasonValue, now.UTC()))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return BlockRecord{}, false, fmt.Errorf("upsert block edge: %w", err)
	}

	existing, err := scanBlockRecord(tx.QueryRow(ctx, `
SELECT `+blockColumns+`
FROM blocked_users
WHERE blocker_user_id = $1 AND blocked_user_id = $2
`, blockerUserID, blockedUserID))
	if err != nil {
		return BlockRecord{}, false, fmt.Errorf("load existing block edge: %w", err)
	}

	return existing, false, nil
}

// Delete removes the edge owned by the blocker. Unblocking someone
// else's edge is not possible through this method.
func (r *BlockRepo) Delete(ctx context.Context, tx pgx.Tx, blockerUserID, blockedUserID int64) (bool, error) {
	if blockerUserID <= 0 || blockedUserID <= 0 {
		return false, fmt.Errorf("invalid unblock payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM blocked_users
WHERE blocker_user_id = $1 AND blocked_user_id = $2
`, blockerUserID, blockedUserID)
	if err != nil {
		return false, fmt.Errorf("delete block edge: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ExistsBetween reports whether any edge exists between the pair in
// either direction. This is the final veto consulted by every
// visibility predicate.
func (r *BlockRepo) ExistsBetween(ctx context.Context, userA, userB int64) (bool, error) {
	if userA <= 0 || userB <= 0 {
		return false, fmt.Errorf("invalid user pair")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM blocked_users
	WHERE (blocker_user_id = $1 AND blocked_user_id = $2)
	   OR (blocker_user_id = $2 AND blocked_user_id = $1)
)
`, userA, userB).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check block edge: %w", err)
	}

	return exists, nil
}

func (r *BlockRepo) ListByBlocker(ctx context.Context, blockerUserID int64, limit int) ([]BlockRecord, error) {
	if blockerUserID <= 0 {
		return nil, fmt.Errorf("invalid blocker user id")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+blockColumns+`
FROM blocked_users
WHERE blocker_user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, blockerUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var records []BlockRecord
	for rows.Next() {
		rec, err := scanBlockRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block rows: %w", err)
	}

	return records, nil
}
