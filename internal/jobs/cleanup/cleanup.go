package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type cooldownSweeper interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type activitySweeper interface {
	DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type banExpirer interface {
	ExpireLapsedBans(ctx context.Context) (int, error)
}

// Job is the periodic housekeeping sweep: expired decline cooldowns and
// old resolved activity rows go away, lapsed temporary bans get lifted.
type Job struct {
	cooldowns         cooldownSweeper
	activities        activitySweeper
	bans              banExpirer
	activityRetention time.Duration
	now               func() time.Time
	logger            *zap.Logger
}

func New(cooldowns cooldownSweeper, activities activitySweeper, bans banExpirer, activityRetention time.Duration, logger *zap.Logger) *Job {
	if activityRetention <= 0 {
		activityRetention = 90 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		cooldowns:         cooldowns,
		activities:        activities,
		bans:              bans,
		activityRetention: activityRetention,
		now:               time.Now,
		logger:            logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	now := j.now()

	if j.cooldowns != nil {
		removed, err := j.cooldowns.DeleteExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("sweep expired cooldowns: %w", err)
		}
		if removed > 0 {
			j.logger.Info("expired cooldowns removed", zap.Int64("count", removed))
		}
	}

	if j.bans != nil {
		lifted, err := j.bans.ExpireLapsedBans(ctx)
		if err != nil {
			return fmt.Errorf("expire lapsed bans: %w", err)
		}
		if lifted > 0 {
			j.logger.Info("lapsed temporary bans lifted", zap.Int("count", lifted))
		}
	}

	if j.activities != nil {
		cutoff := now.Add(-j.activityRetention)
		removed, err := j.activities.DeleteResolvedOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("sweep resolved activities: %w", err)
		}
		if removed > 0 {
			j.logger.Info("old resolved activities removed", zap.Int64("count", removed))
		}
	}

	return nil
}

// RunEvery blocks and reruns the sweep on the interval until the
// context is cancelled.
func (j *Job) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := j.Run(ctx); err != nil {
			j.logger.Error("cleanup sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
