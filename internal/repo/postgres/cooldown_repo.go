package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CooldownRepo struct {
	pool *pgxpool.Pool
}

func NewCooldownRepo(pool *pgxpool.Pool) *CooldownRepo {
	return &CooldownRepo{pool: pool}
}

type CooldownRecord struct {
	DeclinerUserID  int64
	RequesterUserID int64
	DeclinedAt      time.Time
	CooldownUntil   time.Time
	DurationHours   int
}

// Upsert keeps one row per (decliner, requester) pair; a repeat decline
// restarts the window.
func (r *CooldownRepo) Upsert(ctx context.Context, tx pgx.Tx, declinerUserID, requesterUserID int64, declinedAt, cooldownUntil time.Time, durationHours int) error {
	if declinerUserID <= 0 || requesterUserID <= 0 || declinerUserID == requesterUserID {
		return fmt.Errorf("invalid cooldown payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if durationHours <= 0 {
		return fmt.Errorf("invalid cooldown duration")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO decline_cooldowns (
	decliner_user_id,
	requester_user_id,
	declined_at,
	cooldown_until,
	cooldown_duration_hours
) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (decliner_user_id, requester_user_id) DO UPDATE SET
	declined_at = EXCLUDED.declined_at,
	cooldown_until = EXCLUDED.cooldown_until,
	cooldown_duration_hours = EXCLUDED.cooldown_duration_hours
`, declinerUserID, requesterUserID, declinedAt.UTC(), cooldownUntil.UTC(), durationHours); err != nil {
		return fmt.Errorf("upsert decline cooldown: %w", err)
	}

	return nil
}

// ActiveUntil returns the cooldown expiry for the pair if the window is
// still open at now, nil otherwise. Expired rows are left for the
// cleanup job; they are simply ignored here.
func (r *CooldownRepo) ActiveUntil(ctx context.Context, declinerUserID, requesterUserID int64, now time.Time) (*time.Time, error) {
	if declinerUserID <= 0 || requesterUserID <= 0 {
		return nil, fmt.Errorf("invalid cooldown pair")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var until time.Time
	err := r.pool.QueryRow(ctx, `
SELECT cooldown_until
FROM decline_cooldowns
WHERE decliner_user_id = $1 AND requester_user_id = $2 AND cooldown_until > $3
`, declinerUserID, requesterUserID, now.UTC()).Scan(&until)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active cooldown: %w", err)
	}

	return &until, nil
}

func (r *CooldownRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	result, err := r.pool.Exec(ctx, `
DELETE FROM decline_cooldowns
WHERE cooldown_until <= $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired cooldowns: %w", err)
	}

	return result.RowsAffected(), nil
}
