package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a sliding window limiter backed by one sorted set per key, so that
// several server instances share counts.
type Redis struct {
	rdb    *redis.Client
	window Window
	prefix string
	now    func() time.Time
}

// NewRedis returns a limiter storing its windows under prefix
func NewRedis(rdb *redis.Client, w Window, prefix string) *Redis {
	return &Redis{rdb: rdb, window: w, prefix: prefix, now: time.Now}
}

// Allow trims the window, counts it and records the hit when there is room.
// The three steps are not atomic; concurrent bursts may overshoot by a few requests.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now()
	k := r.prefix + key
	cutoff := strconv.FormatInt(now.Add(-r.window.Period).UnixNano(), 10)

	if err := r.rdb.ZRemRangeByScore(ctx, k, "-inf", cutoff).Err(); err != nil {
		return false, err
	}
	count, err := r.rdb.ZCard(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if count >= int64(r.window.Max) {
		return false, nil
	}
	score := now.UnixNano()
	if err := r.rdb.ZAdd(ctx, k, redis.Z{Score: float64(score), Member: strconv.FormatInt(score, 10)}).Err(); err != nil {
		return false, err
	}
	if err := r.rdb.Expire(ctx, k, r.window.Period).Err(); err != nil {
		return false, err
	}
	return true, nil
}
