package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const presencePrefix = "presence:user:"

type PresenceRepo struct {
	client *goredis.Client
}

func NewPresenceRepo(client *goredis.Client) *PresenceRepo {
	return &PresenceRepo{client: client}
}

// SetStatus writes the user's presence state with a TTL so a crashed
// client decays to offline without an explicit disconnect.
func (r *PresenceRepo) SetStatus(ctx context.Context, userID int64, state string, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || state == "" || ttl <= 0 {
		return fmt.Errorf("invalid presence payload")
	}

	if err := r.client.Set(ctx, presenceKey(userID), state, ttl).Err(); err != nil {
		return fmt.Errorf("set presence status: %w", err)
	}

	return nil
}

// GetStatus returns the stored state, or empty string when the key has
// expired or was never set.
func (r *PresenceRepo) GetStatus(ctx context.Context, userID int64) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return "", fmt.Errorf("invalid user id")
	}

	state, err := r.client.Get(ctx, presenceKey(userID)).Result()
	if err == goredis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get presence status: %w", err)
	}

	return state, nil
}

func (r *PresenceRepo) Delete(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	if err := r.client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete presence status: %w", err)
	}

	return nil
}

func presenceKey(userID int64) string {
	return presencePrefix + strconv.FormatInt(userID, 10)
}
