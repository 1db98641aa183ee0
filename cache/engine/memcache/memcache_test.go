package memcache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestEngineLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	payload := json.RawMessage(`{"symbol":"ACME"}`)

	t.Run("Returns stored payload before the TTL elapses", func(t *testing.T) {
		t.Parallel()
		clock := &fakeClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
		e := New(WithNowFunc(clock.Now))

		assert.NoError(t, e.Store(ctx, "k", payload, time.Hour))
		clock.Advance(time.Hour) // exactly at the TTL boundary is still valid

		got, ok, err := e.Lookup(ctx, "k")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, payload, got)
	})

	t.Run("Reports absent and purges after the TTL elapses", func(t *testing.T) {
		t.Parallel()
		clock := &fakeClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
		e := New(WithNowFunc(clock.Now))

		assert.NoError(t, e.Store(ctx, "k", payload, time.Hour))
		clock.Advance(time.Hour + time.Second)

		_, ok, err := e.Lookup(ctx, "k")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, e.Len())
	})

	t.Run("Reports absent for an unknown key", func(t *testing.T) {
		t.Parallel()
		e := New()
		_, ok, err := e.Lookup(ctx, "missing")
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestEngineStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Overwriting a key resets its age", func(t *testing.T) {
		t.Parallel()
		clock := &fakeClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
		e := New(WithNowFunc(clock.Now))

		assert.NoError(t, e.Store(ctx, "k", json.RawMessage(`1`), time.Hour))
		clock.Advance(50 * time.Minute)
		assert.NoError(t, e.Store(ctx, "k", json.RawMessage(`2`), time.Hour))
		clock.Advance(50 * time.Minute)

		got, ok, err := e.Lookup(ctx, "k")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, json.RawMessage(`2`), got)
	})

	t.Run("Keys are independent", func(t *testing.T) {
		t.Parallel()
		e := New()
		assert.NoError(t, e.Store(ctx, "a", json.RawMessage(`1`), time.Hour))
		assert.NoError(t, e.Store(ctx, "b", json.RawMessage(`2`), time.Hour))
		assert.Equal(t, 2, e.Len())

		got, ok, _ := e.Lookup(ctx, "a")
		assert.True(t, ok)
		assert.Equal(t, json.RawMessage(`1`), got)
	})
}

func TestEngineConcurrentAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Store(ctx, "shared", json.RawMessage(`{"n":1}`), time.Hour)
			_, _, _ = e.Lookup(ctx, "shared")
		}()
	}
	wg.Wait()

	_, ok, err := e.Lookup(ctx, "shared")
	assert.NoError(t, err)
	assert.True(t, ok)
}
