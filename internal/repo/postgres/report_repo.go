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

var ErrReportNotFound = errors.New("report not found")

type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

type ReportRecord struct {
	ID               int64
	ReporterUserID   int64
	ReportedUserID   int64
	ReportType       string
	Description      string
	Status           string
	Priority         string
	EvidenceKeys     []string
	ReviewedByUserID *int64
	ResolutionNotes  *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const reportColumns = `
	id,
	reporter_user_id,
	reported_user_id,
	report_type,
	description,
	status,
	priority,
	evidence_keys,
	reviewed_by_user_id,
	resolution_notes,
	created_at,
	updated_at`

func scanReportRecord(row pgx.Row) (ReportRecord, error) {
	var rec ReportRecord
	err := row.Scan(
		&rec.ID,
		&rec.ReporterUserID,
		&rec.ReportedUserID,
		&rec.ReportType,
		&rec.Description,
		&rec.Status,
		&rec.Priority,
		&rec.EvidenceKeys,
		&rec.ReviewedByUserID,
		&rec.ResolutionNotes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

func (r *ReportRepo) Create(ctx context.Context, reporterUserID, reportedUserID int64, reportType, description, status, priority string, evidenceKeys []string, now time.Time) (ReportRecord, error) {
	if reporterUserID <= 0 || reportedUserID <= 0 || reporterUserID == reportedUserID {
		return ReportRecord{}, fmt.Errorf("invalid report payload")
	}
	if strings.TrimSpace(reportType) == "" || strings.TrimSpace(status) == "" || strings.TrimSpace(priority) == "" {
		return ReportRecord{}, fmt.Errorf("invalid report payload")
	}
	if r.pool == nil {
		return ReportRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if evidenceKeys == nil {
		evidenceKeys = []string{}
	}

	rec, err := scanReportRecord(r.pool.QueryRow(ctx, `
INSERT INTO reports (
	reporter_user_id,
	reported_user_id,
	report_type,
	description,
	status,
	priority,
	evidence_keys,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
RETURNING `+reportColumns+`
`, reporterUserID, reportedUserID, reportType, description, status, priority, evidenceKeys, now.UTC()))
	if err != nil {
		return ReportRecord{}, fmt.Errorf("create report: %w", err)
	}

	return rec, nil
}

func (r *ReportRepo) GetByID(ctx context.Context, reportID int64) (ReportRecord, error) {
	if reportID <= 0 {
		return ReportRecord{}, fmt.Errorf("invalid report id")
	}
	if r.pool == nil {
		return ReportRecord{}, fmt.Errorf("postgres pool is nil")
	}

	rec, err := scanReportRecord(r.pool.QueryRow(ctx, `
SELECT`+reportColumns+`
FROM reports
WHERE id = $1
`, reportID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReportRecord{}, ErrReportNotFound
		}
		return ReportRecord{}, fmt.Errorf("get report: %w", err)
	}

	return rec, nil
}

// UpdateStatus moves a report through its review lifecycle; the service
// layer validates the transition before calling.
func (r *ReportRepo) UpdateStatus(ctx context.Context, reportID int64, status string, reviewedByUserID int64, resolutionNotes string, now time.Time) (ReportRecord, error) {
	if reportID <= 0 || strings.TrimSpace(status) == "" || reviewedByUserID <= 0 {
		return ReportRecord{}, fmt.Errorf("invalid status payload")
	}
	if r.pool == nil {
		return ReportRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var notesValue *string
	if trimmed := strings.TrimSpace(resolutionNotes); trimmed != "" {
		notesValue = &trimmed
	}

	rec, err := scanReportRecord(r.pool.QueryRow(ctx, `
UPDATE reports
SET
	status = $2,
	reviewed_by_user_id = $3,
	resolution_notes = COALESCE($4, resolution_notes),
	updated_at = $5
WHERE id = $1
RETURNING `+reportColumns+`
`, reportID, status, reviewedByUserID, notesValue, now.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReportRecord{}, ErrReportNotFound
		}
		return ReportRecord{}, fmt.Errorf("update report status: %w", err)
	}

	return rec, nil
}

// List returns reports for the moderation queue, newest first, filtered
// by status when one is given.
func (r *ReportRepo) List(ctx context.Context, status string, limit int) ([]ReportRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
SELECT` + reportColumns + `
FROM reports
`
	args := []any{limit}
	if strings.TrimSpace(status) != "" {
		query += `WHERE status = $2
`
		args = append(args, status)
	}
	query += `ORDER BY created_at DESC, id DESC
LIMIT $1
`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var records []ReportRecord
	for rows.Next() {
		rec, err := scanReportRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}

	return records, nil
}

func (r *ReportRepo) ListAgainstUser(ctx context.Context, reportedUserID int64, limit int) ([]ReportRecord, error) {
	if reportedUserID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+reportColumns+`
FROM reports
WHERE reported_user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, reportedUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports against user: %w", err)
	}
	defer rows.Close()

	var records []ReportRecord
	for rows.Next() {
		rec, err := scanReportRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}

	return records, nil
}

func (r *ReportRepo) CountsByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countsBy(ctx, "status")
}

func (r *ReportRepo) CountsByType(ctx context.Context) (map[string]int64, error) {
	return r.countsBy(ctx, "report_type")
}

func (r *ReportRepo) countsBy(ctx context.Context, column string) (map[string]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+column+`, COUNT(*)
FROM reports
GROUP BY `+column+`
`)
	if err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan report count: %w", err)
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report counts: %w", err)
	}

	return counts, nil
}
