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

var ErrActionNotFound = errors.New("moderation action not found")

type ActionRepo struct {
	pool *pgxpool.Pool
}

func NewActionRepo(pool *pgxpool.Pool) *ActionRepo {
	return &ActionRepo{pool: pool}
}

type ActionRecord struct {
	ID              int64
	TargetUserID    int64
	ActionType      string
	Reason          string
	PerformedByID   int64
	RelatedReportID *int64
	ExpiresAt       *time.Time
	RevokedAt       *time.Time
	CreatedAt       time.Time
}

const actionColumns = `
	id,
	target_user_id,
	action_type,
	reason,
	performed_by_user_id,
	related_report_id,
	expires_at,
	revoked_at,
	created_at`

func scanActionRecord(row pgx.Row) (ActionRecord, error) {
	var rec ActionRecord
	err := row.Scan(
		&rec.ID,
		&rec.TargetUserID,
		&rec.ActionType,
		&rec.Reason,
		&rec.PerformedByID,
		&rec.RelatedReportID,
		&rec.ExpiresAt,
		&rec.RevokedAt,
		&rec.CreatedAt,
	)
	return rec, err
}

// Create writes the audit row for a moderation action. Ban actions run
// inside the deactivation transaction, so tx is required.
func (r *ActionRepo) Create(ctx context.Context, tx pgx.Tx, targetUserID int64, actionType, reason string, performedByUserID int64, relatedReportID *int64, expiresAt *time.Time, now time.Time) (ActionRecord, error) {
	if targetUserID <= 0 || performedByUserID <= 0 {
		return ActionRecord{}, fmt.Errorf("invalid action payload")
	}
	if strings.TrimSpace(actionType) == "" || strings.TrimSpace(reason) == "" {
		return ActionRecord{}, fmt.Errorf("invalid action payload")
	}
	if tx == nil {
		return ActionRecord{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec, err := scanActionRecord(tx.QueryRow(ctx, `
INSERT INTO moderation_actions (
	target_user_id,
	action_type,
	reason,
	performed_by_user_id,
	related_report_id,
	expires_at,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+actionColumns+`
`, targetUserID, actionType, reason, performedByUserID, relatedReportID, expiresAt, now.UTC()))
	if err != nil {
		return ActionRecord{}, fmt.Errorf("create moderation action: %w", err)
	}

	return rec, nil
}

func (r *ActionRepo) ListForUser(ctx context.Context, targetUserID int64, limit int) ([]ActionRecord, error) {
	if targetUserID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+actionColumns+`
FROM moderation_actions
WHERE target_user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, targetUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list moderation actions: %w", err)
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		rec, err := scanActionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action rows: %w", err)
	}

	return records, nil
}

// CountActiveBans counts ban actions still in force: not revoked and
// either permanent or not yet expired.
func (r *ActionRepo) CountActiveBans(ctx context.Context, now time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var count int64
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM moderation_actions
WHERE action_type IN ('temporary_ban', 'permanent_ban')
  AND revoked_at IS NULL
  AND (expires_at IS NULL OR expires_at > $1)
`, now.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active bans: %w", err)
	}

	return count, nil
}

// ExpireTemporaryBans marks lapsed temporary bans as revoked and returns
// the affected user ids so the caller can reactivate their settings.
func (r *ActionRepo) ExpireTemporaryBans(ctx context.Context, tx pgx.Tx, now time.Time) ([]int64, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rows, err := tx.Query(ctx, `
UPDATE moderation_actions
SET revoked_at = $1
WHERE action_type = 'temporary_ban'
  AND revoked_at IS NULL
  AND expires_at IS NOT NULL
  AND expires_at <= $1
RETURNING target_user_id
`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("expire temporary bans: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired ban row: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired ban rows: %w", err)
	}

	return userIDs, nil
}
