package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// requestWindowScript keeps a per-sender sorted set of send timestamps.
// It trims entries older than the window, records the new send, and
// compares the remaining count against the threshold. When the
// threshold is hit the whole window is cleared so the alarm fires once
// per burst instead of on every subsequent send.
const requestWindowScript = `
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local threshold = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now_ms - window_ms)
redis.call('ZADD', key, now_ms, ARGV[4])
redis.call('PEXPIRE', key, window_ms)

local count = redis.call('ZCARD', key)
if count >= threshold then
  redis.call('DEL', key)
  return {count, 1}
end
return {count, 0}
`

type WindowRepo struct {
	client *goredis.Client
}

func NewWindowRepo(client *goredis.Client) *WindowRepo {
	return &WindowRepo{client: client}
}

// RecordSend registers one connection-request send for the user and
// reports the count inside the sliding window plus whether this send
// tripped the threshold.
func (r *WindowRepo) RecordSend(ctx context.Context, userID int64, now time.Time, window time.Duration, threshold int) (int64, bool, error) {
	if r.client == nil {
		return 0, false, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || window <= 0 || threshold <= 0 {
		return 0, false, fmt.Errorf("invalid window payload")
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	result, err := r.client.Eval(ctx, requestWindowScript,
		[]string{requestWindowKey(userID)},
		now.UnixMilli(), window.Milliseconds(), threshold, member,
	).Result()
	if err != nil {
		return 0, false, fmt.Errorf("eval request window script: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return 0, false, fmt.Errorf("unexpected request window reply: %v", result)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected request window count: %v", values[0])
	}
	fired, ok := values[1].(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected request window flag: %v", values[1])
	}

	return count, fired == 1, nil
}

// WindowCount reads the current count without recording a send.
func (r *WindowRepo) WindowCount(ctx context.Context, userID int64, now time.Time, window time.Duration) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || window <= 0 {
		return 0, fmt.Errorf("invalid window payload")
	}

	from := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	count, err := r.client.ZCount(ctx, requestWindowKey(userID), from, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count request window: %w", err)
	}

	return count, nil
}

func requestWindowKey(userID int64) string {
	return "req_window:user:" + strconv.FormatInt(userID, 10)
}
