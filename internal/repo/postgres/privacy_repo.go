package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prymskiwen/crewvar-sub001/internal/domain/enums"
)

var ErrPrivacySettingsNotFound = errors.New("privacy settings not found")

type PrivacyRepo struct {
	pool *pgxpool.Pool
}

func NewPrivacyRepo(pool *pgxpool.Pool) *PrivacyRepo {
	return &PrivacyRepo{pool: pool}
}

type PrivacySettingsRecord struct {
	UserID                    int64
	Verified                  bool
	Active                    bool
	ShowOnlyTodayShip         bool
	AllowFutureShipVisibility bool
	DeclineRequestsSilently   bool
	BlockEnforcesInvisibility bool
	VerificationStatus        string
	VerifiedAt                *time.Time
	LastActiveAt              time.Time
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// PrivacyPreferencesUpdate carries the owner-editable flags. Verification
// and active state are admin-only and go through dedicated methods.
type PrivacyPreferencesUpdate struct {
	ShowOnlyTodayShip         bool
	AllowFutureShipVisibility bool
	DeclineRequestsSilently   bool
	BlockEnforcesInvisibility bool
}

const privacyColumns = `
	user_id,
	is_verified,
	is_active,
	show_only_today_ship,
	allow_future_ship_visibility,
	decline_requests_silently,
	block_enforces_invisibility,
	verification_status,
	verified_at,
	last_active_at,
	created_at,
	updated_at`

func scanPrivacyRecord(row pgx.Row) (PrivacySettingsRecord, error) {
	var rec PrivacySettingsRecord
	err := row.Scan(
		&rec.UserID,
		&rec.Verified,
		&rec.Active,
		&rec.ShowOnlyTodayShip,
		&rec.AllowFutureShipVisibility,
		&rec.DeclineRequestsSilently,
		&rec.BlockEnforcesInvisibility,
		&rec.VerificationStatus,
		&rec.VerifiedAt,
		&rec.LastActiveAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

// Create inserts the default settings row written at account creation:
// unverified, active, silent declines on. Re-creating is a no-op so the
// call is safe to repeat from onboarding retries.
func (r *PrivacyRepo) Create(ctx context.Context, userID int64, now time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO privacy_settings (
	user_id,
	is_verified,
	is_active,
	show_only_today_ship,
	allow_future_ship_visibility,
	decline_requests_silently,
	block_enforces_invisibility,
	verification_status,
	last_active_at,
	created_at,
	updated_at
) VALUES ($1, FALSE, TRUE, TRUE, FALSE, TRUE, TRUE, $2, $3, $3, $3)
ON CONFLICT (user_id) DO NOTHING
`, userID, string(enums.VerificationStatusPending), now.UTC()); err != nil {
		return fmt.Errorf("create privacy settings: %w", err)
	}

	return nil
}

func (r *PrivacyRepo) Get(ctx context.Context, userID int64) (PrivacySettingsRecord, error) {
	if userID <= 0 {
		return PrivacySettingsRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return PrivacySettingsRecord{}, fmt.Errorf("postgres pool is nil")
	}

	rec, err := scanPrivacyRecord(r.pool.QueryRow(ctx, `
SELECT`+privacyColumns+`
FROM privacy_settings
WHERE user_id = $1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PrivacySettingsRecord{}, ErrPrivacySettingsNotFound
		}
		return PrivacySettingsRecord{}, fmt.Errorf("get privacy settings: %w", err)
	}

	return rec, nil
}

func (r *PrivacyRepo) UpdatePreferences(ctx context.Context, userID int64, update PrivacyPreferencesUpdate, now time.Time) (PrivacySettingsRecord, error) {
	if userID <= 0 {
		return PrivacySettingsRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return PrivacySettingsRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec, err := scanPrivacyRecord(r.pool.QueryRow(ctx, `
UPDATE privacy_settings
SET
	show_only_today_ship = $2,
	allow_future_ship_visibility = $3,
	decline_requests_silently = $4,
	block_enforces_invisibility = $5,
	updated_at = $6
WHERE user_id = $1
RETURNING`+privacyColumns+`
`, userID,
		update.ShowOnlyTodayShip,
		update.AllowFutureShipVisibility,
		update.DeclineRequestsSilently,
		update.BlockEnforcesInvisibility,
		now.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PrivacySettingsRecord{}, ErrPrivacySettingsNotFound
		}
		return PrivacySettingsRecord{}, fmt.Errorf("update privacy preferences: %w", err)
	}

	return rec, nil
}

// SetVerification records an admin verification decision and flips the
// derived is_verified flag in the same statement.
func (r *PrivacyRepo) SetVerification(ctx context.Context, userID int64, status string, now time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	verified := status == string(enums.VerificationStatusVerified)
	var verifiedAt *time.Time
	if verified {
		at := now.UTC()
		verifiedAt = &at
	}

	result, err := r.pool.Exec(ctx, `
UPDATE privacy_settings
SET
	verification_status = $2,
	is_verified = $3,
	verified_at = $4,
	updated_at = $5
WHERE user_id = $1
`, userID, status, verified, verifiedAt, now.UTC())
	if err != nil {
		return fmt.Errorf("set verification status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPrivacySettingsNotFound
	}

	return nil
}

// SetActive flips the active flag. It participates in moderation
// transactions (ban cascades) when tx is non-nil and runs standalone
// otherwise. Settings rows are never deleted, only deactivated.
func (r *PrivacyRepo) SetActive(ctx context.Context, tx pgx.Tx, userID int64, active bool, now time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	const query = `
UPDATE privacy_settings
SET
	is_active = $2,
	updated_at = $3
WHERE user_id = $1
`

	var (
		result pgconn.CommandTag
		err    error
	)
	if tx != nil {
		result, err = tx.Exec(ctx, query, userID, active, now.UTC())
	} else {
		if r.pool == nil {
			return fmt.Errorf("postgres pool is nil")
		}
		result, err = r.pool.Exec(ctx, query, userID, active, now.UTC())
	}
	if err != nil {
		return fmt.Errorf("set active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPrivacySettingsNotFound
	}

	return nil
}

func (r *PrivacyRepo) TouchLastActive(ctx context.Context, userID int64, now time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE privacy_settings
SET last_active_at = $2
WHERE user_id = $1
`, userID, now.UTC()); err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}

	return nil
}
