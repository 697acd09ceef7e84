package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DeusData/pgraf-cypher/internal/translate"
)

const redisPrefix = "pgraf-cypher:tr:"

// Redis shares translations between processes through a Redis server.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	counters
}

var _ Cache = (*Redis)(nil)

// WrapRedis uses an existing client. ttl <= 0 keeps entries until evicted
// by the server.
func WrapRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: max(ttl, 0)}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return WrapRedis(rdb, ttl), nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (*translate.Result, bool) {
	if key == "" {
		return nil, false
	}
	b, err := r.rdb.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("cache.redis.get", "err", err)
		}
		r.record(false)
		return nil, false
	}
	res, err := decodeResult(b)
	if err != nil {
		slog.Warn("cache.redis.decode", "err", err)
		r.record(false)
		return nil, false
	}
	r.record(true)
	return res, true
}

func (r *Redis) Set(ctx context.Context, key string, res *translate.Result) {
	if key == "" || res == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		slog.Warn("cache.redis.encode", "err", err)
		return
	}
	if err := r.rdb.Set(ctx, redisPrefix+key, b, r.ttl).Err(); err != nil {
		slog.Warn("cache.redis.set", "err", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, key string) {
	if err := r.rdb.Del(ctx, redisPrefix+key).Err(); err != nil {
		slog.Warn("cache.redis.del", "err", err)
	}
}

// Clear deletes every key under the translation prefix.
func (r *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, redisPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Stats reports this process's hit rate. Size is not tracked for a shared
// server.
func (r *Redis) Stats() Stats {
	return r.stats(0, 0)
}

// decodeResult restores a cached Result. Numbers come back as int64 when
// they are integral so positional arguments keep their driver types.
func decodeResult(b []byte) (*translate.Result, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var res translate.Result
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	for k, v := range res.Parameters {
		res.Parameters[k] = fromJSON(v)
	}
	return &res, nil
}

func fromJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = fromJSON(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = fromJSON(x[k])
		}
	}
	return v
}
