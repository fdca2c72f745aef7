package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prymskiwen/crewvar-sub001/internal/domain/enums"
)

var ErrRequestNotFound = errors.New("connection request not found")

type RequestRepo struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

type RequestRecord struct {
	ID         int64
	FromUserID int64
	ToUserID   int64
	Status     string
	Message    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const requestColumns = `id, from_user_id, to_user_id, status, message, created_at, updated_at`

func scanRequestRecord(row pgx.Row) (RequestRecord, error) {
	var rec RequestRecord
	err := row.Scan(
		&rec.ID,
		&rec.FromUserID,
		&rec.ToUserID,
		&rec.Status,
		&rec.Message,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

func (r *RequestRepo) Create(ctx context.Context, tx pgx.Tx, fromUserID, toUserID int64, message string, now time.Time) (RequestRecord, error) {
	if fromUserID <= 0 || toUserID <= 0 || fromUserID == toUserID {
		return RequestRecord{}, fmt.Errorf("invalid request payload")
	}
	if tx == nil {
		return RequestRecord{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var messageValue *string
	if trimmed := strings.TrimSpace(message); trimmed != "" {
		messageValue = &trimmed
	}

	rec, err := scanRequestRecord(tx.QueryRow(ctx, `
INSERT INTO connection_requests (
	from_user_id,
	to_user_id,
	status,
	message,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $5)
RETURNING `+requestColumns+`
`, fromUserID, toUserID, string(enums.RequestStatusPending), messageValue, now.UTC()))
	if err != nil {
		return RequestRecord{}, fmt.Errorf("create connection request: %w", err)
	}

	return rec, nil
}

func (r *RequestRepo) GetByID(ctx context.Context, requestID int64) (RequestRecord, error) {
	if requestID <= 0 {
		return RequestRecord{}, fmt.Errorf("invalid request id")
	}
	if r.pool == nil {
		return RequestRecord{}, fmt.Errorf("postgres pool is nil")
	}

	rec, err := scanRequestRecord(r.pool.QueryRow(ctx, `
SELECT `+requestColumns+`
FROM connection_requests
WHERE id = $1
`, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RequestRecord{}, ErrRequestNotFound
		}
		return RequestRecord{}, fmt.Errorf("get connection request: %w", err)
	}

	return rec, nil
}

// GetByIDForUpdate locks the row for the duration of the surrounding
// transaction so concurrent accepts serialize on the same request.
func (r *RequestRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, requestID int64) (RequestRecord, error) {
	if requestID <= 0 {
		return RequestRecord{}, fmt.Errorf("invalid request id")
	}
	if tx == nil {
		return RequestRecord{}, fmt.Errorf("transaction is required")
	}

	rec, err := scanRequestRecord(tx.QueryRow(ctx, `
SELECT `+requestColumns+`
FROM connection_requests
WHERE id = $1
FOR UPDATE
`, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RequestRecord{}, ErrRequestNotFound
		}
		return RequestRecord{}, fmt.Errorf("lock connection request: %w", err)
	}

	return rec, nil
}

// GetPendingBetween finds a pending request between the pair in either
// direction; at most one may exist at a time.
func (r *RequestRepo) GetPendingBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (RequestRecord, error) {
	if userA <= 0 || userB <= 0 {
		return RequestRecord{}, fmt.Errorf("invalid user pair")
	}
	if tx == nil {
		return RequestRecord{}, fmt.Errorf("transaction is required")
	}

	rec, err := scanRequestRecord(tx.QueryRow(ctx, `
SELECT `+requestColumns+`
FROM connection_requests
WHERE status = $3
  AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))
ORDER BY id
LIMIT 1
FOR UPDATE
`, userA, userB, string(enums.RequestStatusPending)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RequestRecord{}, ErrRequestNotFound
		}
		return RequestRecord{}, fmt.Errorf("get pending request between users: %w", err)
	}

	return rec, nil
}

// UpdateStatus transitions a request out of pending. The WHERE guard
// keeps terminal rows immutable at the storage layer as well.
func (r *RequestRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, requestID int64, status string, now time.Time) error {
	if requestID <= 0 || strings.TrimSpace(status) == "" {
		return fmt.Errorf("invalid status payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := tx.Exec(ctx, `
UPDATE connection_requests
SET status = $2, updated_at = $3
WHERE id = $1 AND status = $4
`, requestID, status, now.UTC(), string(enums.RequestStatusPending))
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	return nil
}

// DeleteByID removes a request outright; used for sender cancellation,
// which leaves no trace and no cooldown.
func (r *RequestRepo) DeleteByID(ctx context.Context, tx pgx.Tx, requestID int64) error {
	if requestID <= 0 {
		return fmt.Errorf("invalid request id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM connection_requests
WHERE id = $1
`, requestID)
	if err != nil {
		return fmt.Errorf("delete connection request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	return nil
}

func (r *RequestRepo) ListIncoming(ctx context.Context, toUserID int64, limit int) ([]RequestRecord, error) {
	return r.listByColumn(ctx, "to_user_id", toUserID, limit)
}

func (r *RequestRepo) ListOutgoing(ctx context.Context, fromUserID int64, limit int) ([]RequestRecord, error) {
	return r.listByColumn(ctx, "from_user_id", fromUserID, limit)
}

func (r *RequestRepo) listByColumn(ctx context.Context, column string, userID int64, limit int) ([]RequestRecord, error) {
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
SELECT `+requestColumns+`
FROM connection_requests
WHERE `+column+` = $1 AND status = $2
ORDER BY created_at DESC, id DESC
LIMIT $3
`, userID, string(enums.RequestStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list connection requests: %w", err)
	}
	defer rows.Close()

	var records []RequestRecord
	for rows.Next() {
		rec, err := scanRequestRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request rows: %w", err)
	}

	return records, nil
}
