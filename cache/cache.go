package cache

import (
	"context"
	"encoding/json"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mock/cache.go -package=mock_cache

// Engine stores opaque JSON payloads under canonical request keys.
// An entry past its TTL is reported as absent.
type Engine interface {
	Lookup(ctx context.Context, key string) (payload json.RawMessage, ok bool, err error)
	Store(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error
}
