package runlog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRunKey = "weft:runlog"

// Redis is a Store over a Redis sorted set (scored by timestamp, member =
// JSON record). Aggregation happens client-side after the range read.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis creates a store over the given Redis client.
func NewRedis(client redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = defaultRunKey
	}
	return &Redis{client: client, key: key}
}

// Record implements Recorder.
func (r *Redis) Record(ctx context.Context, rec Record) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	score := float64(rec.At.UnixNano()) / 1e9
	return r.client.ZAdd(ctx, r.key, redis.Z{Score: score, Member: string(raw)}).Err()
}

// Summarize implements Store by reading the scored range and aggregating
// in memory.
func (r *Redis) Summarize(ctx context.Context, q Query) ([]Summary, error) {
	min, max := "-inf", "+inf"
	if !q.From.IsZero() {
		min = strconv.FormatFloat(float64(q.From.UnixNano())/1e9, 'f', -1, 64)
	}
	if !q.To.IsZero() {
		max = strconv.FormatFloat(float64(q.To.UnixNano())/1e9, 'f', -1, 64)
	}
	const batch = 10000
	var records []Record
	for offset := int64(0); ; offset += batch {
		vals, err := r.client.ZRangeByScore(ctx, r.key, &redis.ZRangeBy{
			Min: min, Max: max, Offset: offset, Count: batch,
		}).Result()
		if err != nil {
			return nil, err
		}
		for _, raw := range vals {
			var rec Record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		if len(vals) < batch {
			break
		}
	}
	return summarize(records, q), nil
}

var _ Store = (*Redis)(nil)
