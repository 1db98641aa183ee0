// Package memcache provides an in-process cache.Engine with per-entry TTL.
//
// Entries are never evicted except by TTL: an expired entry is deleted
// lazily by the Lookup that observes it. There is no capacity bound, so
// the map grows with the number of distinct keys for the process lifetime.
package memcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/okanoue/apirelay/cache"
)

type entry struct {
	payload  json.RawMessage
	storedAt time.Time
	ttl      time.Duration
}

type Engine struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var _ cache.Engine = (*Engine)(nil)

type Option interface {
	apply(e *Engine)
}

var _ Option = nowFuncOption(nil)

type nowFuncOption func() time.Time

func (o nowFuncOption) apply(e *Engine) {
	e.now = o
}

// WithNowFunc replaces the clock used for expiry decisions.
func WithNowFunc(now func() time.Time) nowFuncOption {
	return nowFuncOption(now)
}

func New(opts ...Option) *Engine {
	e := &Engine{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, o := range opts {
		o.apply(e)
	}
	return e
}

func (e *Engine) Lookup(ctx context.Context, key string) (json.RawMessage, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.now().Sub(ent.storedAt) > ent.ttl {
		delete(e.entries, key)
		return nil, false, nil
	}
	return ent.payload, true, nil
}

func (e *Engine) Store(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[key] = entry{
		payload:  payload,
		storedAt: e.now(),
		ttl:      ttl,
	}
	return nil
}

// Len reports the number of entries currently held, expired or not.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}
