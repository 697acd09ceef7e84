// Package cache memoizes translations keyed by query text, parameters and
// translator configuration.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/DeusData/pgraf-cypher/internal/translate"
)

// Cache stores finished translations. Implementations are safe for
// concurrent use; a failing backend behaves like a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*translate.Result, bool)
	Set(ctx context.Context, key string, res *translate.Result)
	Invalidate(ctx context.Context, key string)
	Clear(ctx context.Context) error
	Stats() Stats
}

// Stats represents cache statistics.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// counters is the hit/miss bookkeeping shared by the implementations.
type counters struct {
	hits, misses, evictions atomic.Int64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) stats(size, maxSize int) Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
		MaxSize:   maxSize,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Key derives a 128-bit cache key. params are encoded as JSON, which sorts
// map keys, so equal parameter maps give equal keys. Every value carries its
// Go type, so 1 and 1.0 bind differently and get different keys.
func Key(query string, params map[string]any, cfg translate.Config) string {
	h := xxh3.New()
	_, _ = h.WriteString(query)
	_, _ = h.Write([]byte{0})
	if len(params) > 0 {
		b, err := json.Marshal(typed(params))
		if err != nil {
			// Unencodable values never share a key with anything.
			return ""
		}
		_, _ = h.Write(b)
	}
	_, _ = h.Write([]byte{0})
	b, _ := json.Marshal(cfg)
	_, _ = h.Write(b)
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:])
}

// typed pairs every leaf value with its Go type name.
func typed(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = typed(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = typed(val)
		}
		return out
	}
	return [2]any{fmt.Sprintf("%T", v), v}
}
