package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/DeusData/pgraf-cypher/internal/translate"
)

// Memory is a bounded in-process LRU with an optional TTL.
type Memory struct {
	lru     *expirable.LRU[string, *translate.Result]
	maxSize int
	counters
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an LRU holding at most size entries. ttl <= 0 disables
// expiry.
func NewMemory(size int, ttl time.Duration) *Memory {
	m := &Memory{maxSize: size}
	m.lru = expirable.NewLRU[string, *translate.Result](size, func(string, *translate.Result) {
		m.evictions.Add(1)
	}, ttl)
	return m
}

func (m *Memory) Get(_ context.Context, key string) (*translate.Result, bool) {
	if key == "" {
		return nil, false
	}
	res, ok := m.lru.Get(key)
	m.record(ok)
	return res, ok
}

func (m *Memory) Set(_ context.Context, key string, res *translate.Result) {
	if key == "" || res == nil {
		return
	}
	m.lru.Add(key, res)
}

func (m *Memory) Invalidate(_ context.Context, key string) {
	m.lru.Remove(key)
}

func (m *Memory) Clear(context.Context) error {
	m.lru.Purge()
	return nil
}

func (m *Memory) Stats() Stats {
	return m.stats(m.lru.Len(), m.maxSize)
}
