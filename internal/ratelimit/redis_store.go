package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript collapses GET / SET EX / INCR into one server-side step.
// A rejected request leaves the counter untouched. INCR keeps the TTL set on
// creation, so the window always counts down from the first request.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if not current then
		redis.call('SET', key, 1, 'PX', window_ms)
		return { 1, 1, window_ms }
	end

	current = tonumber(current)
	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window_ms)
		ttl = window_ms
	end

	if current >= limit then
		return { 0, current, ttl }
	end

	current = redis.call('INCR', key)
	return { 1, current, ttl }
`)

// RedisStore keeps counters in Redis so every process sharing the server
// enforces one budget per key.
type RedisStore struct {
	rdb redis.Scripter
}

func NewRedisStore(rdb redis.Scripter) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Consume(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	vals, err := fixedWindowScript.Run(ctx, s.rdb, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected script result for key=%s: %v", key, vals)
	}
	return Result{
		Allowed: vals[0] == 1,
		Count:   vals[1],
		ResetIn: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}
