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

var ErrActivityNotFound = errors.New("suspicious activity not found")

type ActivityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

type ActivityRecord struct {
	ID               int64
	UserID           int64
	ActivityType     string
	Severity         string
	Details          string
	Resolved         bool
	ResolvedByUserID *int64
	ResolvedAt       *time.Time
	CreatedAt        time.Time
}

const activityColumns = `
	id,
	user_id,
	activity_type,
	severity,
	details,
	is_resolved,
	resolved_by_user_id,
	resolved_at,
	created_at`

func scanActivityRecord(row pgx.Row) (ActivityRecord, error) {
	var rec ActivityRecord
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ActivityType,
		&rec.Severity,
		&rec.Details,
		&rec.Resolved,
		&rec.ResolvedByUserID,
		&rec.ResolvedAt,
		&rec.CreatedAt,
	)
	return rec, err
}

func (r *ActivityRepo) Create(ctx context.Context, userID int64, activityType, severity, details string, now time.Time) (ActivityRecord, error) {
	if userID <= 0 || strings.TrimSpace(activityType) == "" || strings.TrimSpace(severity) == "" {
		return ActivityRecord{}, fmt.Errorf("invalid activity payload")
	}
	if r.pool == nil {
		return ActivityRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec, err := scanActivityRecord(r.pool.QueryRow(ctx, `
INSERT INTO suspicious_activities (
	user_id,
	activity_type,
	severity,
	details,
	is_resolved,
	created_at
) VALUES ($1, $2, $3, $4, FALSE, $5)
RETURNING `+activityColumns+`
`, userID, activityType, severity, details, now.UTC()))
	if err != nil {
		return ActivityRecord{}, fmt.Errorf("create suspicious activity: %w", err)
	}

	return rec, nil
}

func (r *ActivityRepo) MarkResolved(ctx context.Context, activityID, resolvedByUserID int64, now time.Time) (ActivityRecord, error) {
	if activityID <= 0 || resolvedByUserID <= 0 {
		return ActivityRecord{}, fmt.Errorf("invalid resolve payload")
	}
	if r.pool == nil {
		return ActivityRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec, err := scanActivityRecord(r.pool.QueryRow(ctx, `
UPDATE suspicious_activities
SET
	is_resolved = TRUE,
	resolved_by_user_id = $2,
	resolved_at = $3
WHERE id = $1 AND is_resolved = FALSE
RETURNING `+activityColumns+`
`, activityID, resolvedByUserID, now.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ActivityRecord{}, ErrActivityNotFound
		}
		return ActivityRecord{}, fmt.Errorf("resolve suspicious activity: %w", err)
	}

	return rec, nil
}

func (r *ActivityRepo) ListOpen(ctx context.Context, limit int) ([]ActivityRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+activityColumns+`
FROM suspicious_activities
WHERE is_resolved = FALSE
ORDER BY created_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list open activities: %w", err)
	}
	defer rows.Close()

	var records []ActivityRecord
	for rows.Next() {
		rec, err := scanActivityRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}

	return records, nil
}

func (r *ActivityRepo) CountOpen(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var count int64
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM suspicious_activities
WHERE is_resolved = FALSE
`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open activities: %w", err)
	}

	return count, nil
}

func (r *ActivityRepo) DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	result, err := r.pool.Exec(ctx, `
DELETE FROM suspicious_activities
WHERE is_resolved = TRUE AND resolved_at <= $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete resolved activities: %w", err)
	}

	return result.RowsAffected(), nil
}
