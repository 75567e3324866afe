package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRecorder keeps the most recent records in a capped Redis list,
// newest first.
type RedisRecorder struct {
	rdb        *redis.Client
	key        string
	maxEntries int64
}

// NewRedisRecorder creates a RedisRecorder. maxEntries <= 0 keeps the list
// uncapped.
func NewRedisRecorder(rdb *redis.Client, key string, maxEntries int64) *RedisRecorder {
	return &RedisRecorder{rdb: rdb, key: key, maxEntries: maxEntries}
}

// Record pushes rec onto the list and trims it.
func (r *RedisRecorder) Record(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit redis: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, payload)
	if r.maxEntries > 0 {
		pipe.LTrim(ctx, r.key, 0, r.maxEntries-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("audit redis: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (r *RedisRecorder) Recent(ctx context.Context, n int64) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.rdb.LRange(ctx, r.key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("audit redis: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("audit redis: decode: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close is a no-op; the client is owned by the caller.
func (r *RedisRecorder) Close() error { return nil }
