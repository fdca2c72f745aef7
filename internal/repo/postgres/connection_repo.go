package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prymskiwen/crewvar-sub001/internal/domain/enums"
)

var ErrConnectionNotFound = errors.New("connection not found")

type ConnectionRepo struct {
	pool *pgxpool.Pool
}

func NewConnectionRepo(pool *pgxpool.Pool) *ConnectionRepo {
	return &ConnectionRepo{pool: pool}
}

// ConnectionRecord is symmetric: UserLoID < UserHiID always, so a pair
// maps to exactly one row no matter who initiated.
type ConnectionRecord struct {
	ID        int64
	UserLoID  int64
	UserHiID  int64
	Status    string
	CreatedAt time.Time
}

const connectionColumns = `id, user_lo_id, user_hi_id, status, created_at`

func scanConnectionRecord(row pgx.Row) (ConnectionRecord, error) {
	var rec ConnectionRecord
	err := row.Scan(
		&rec.ID,
		&rec.UserLoID,
		&rec.UserHiID,
		&rec.Status,
		&rec.CreatedAt,
	)
	return rec, err
}

func orderPair(userA, userB int64) (int64, int64) {
	if userA < userB {
		return userA, userB
	}
	return userB, userA
}

// Activate inserts the connection produced by an accepted request. The
// pair keeps a single symmetric row, so a row left behind by an earlier
// block is flipped back to active in place rather than duplicated.
func (r *ConnectionRepo) Activate(ctx context.Context, tx pgx.Tx, userA, userB int64, now time.Time) (ConnectionRecord, error) {
	if userA <= 0 || userB <= 0 || userA == userB {
		return ConnectionRecord{}, fmt.Errorf("invalid connection payload")
	}
	if tx == nil {
		return ConnectionRecord{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	lo, hi := orderPair(userA, userB)

	rec, err := scanConnectionRecord(tx.QueryRow(ctx, `
INSERT INTO connections (
	user_lo_id,
	user_hi_id,
	status,
	created_at
) VALUES ($1, $2, $3, $4)
ON CONFLICT (user_lo_id, user_hi_id) DO UPDATE
SET status = EXCLUDED.status
RETURNING `+connectionColumns+`
`, lo, hi, string(enums.ConnectionStatusActive), now.UTC()))
	if err != nil {
		return ConnectionRecord{}, fmt.Errorf("activate connection: %w", err)
	}

	return rec, nil
}

func (r *ConnectionRepo) GetBetween(ctx context.Context, userA, userB int64) (ConnectionRecord, error) {
	if userA <= 0 || userB <= 0 {
		return ConnectionRecord{}, fmt.Errorf("invalid user pair")
	}
	if r.pool == nil {
		return ConnectionRecord{}, fmt.Errorf("postgres pool is nil")
	}

	lo, hi := orderPair(userA, userB)

	rec, err := scanConnectionRecord(r.pool.QueryRow(ctx, `
SELECT `+connectionColumns+`
FROM connections
WHERE user_lo_id = $1 AND user_hi_id = $2
`, lo, hi))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConnectionRecord{}, ErrConnectionNotFound
		}
		return ConnectionRecord{}, fmt.Errorf("get connection: %w", err)
	}

	return rec, nil
}

// MarkBlockedBetween flips an active connection to blocked. The row is
// kept, not deleted, so chat-history ownership stays with collaborators.
func (r *ConnectionRepo) MarkBlockedBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (bool, error) {
	if userA <= 0 || userB <= 0 {
		return false, fmt.Errorf("invalid user pair")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	lo, hi := orderPair(userA, userB)

	result, err := tx.Exec(ctx, `
UPDATE connections
SET status = $3
WHERE user_lo_id = $1 AND user_hi_id = $2 AND status = $4
`, lo, hi, string(enums.ConnectionStatusBlocked), string(enums.ConnectionStatusActive))
	if err != nil {
		return false, fmt.Errorf("mark connection blocked: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *ConnectionRepo) ListActiveForUser(ctx context.Context, userID int64, limit int) ([]ConnectionRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+connectionColumns+`
FROM connections
WHERE (user_lo_id = $1 OR user_hi_id = $1) AND status = $2
ORDER BY created_at DESC, id DESC
LIMIT $3
`, userID, string(enums.ConnectionStatusActive), limit)
	if err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}
	defer rows.Close()

	var records []ConnectionRecord
	for rows.Next() {
		rec, err := scanConnectionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection rows: %w", err)
	}

	return records, nil
}
