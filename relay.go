// Package apirelay relays requests to a rate-limited upstream API through a
// response cache and a daily quota guard. The cache is consulted first so a
// hit never spends quota; only a miss that clears the guard reaches the
// upstream.
package apirelay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okanoue/apirelay/cache"
	"github.com/okanoue/apirelay/cache/key"
	"github.com/okanoue/apirelay/quota"
	"github.com/okanoue/apirelay/upstream"
)

type Relay struct {
	engine               cache.Engine
	guard                *quota.Guard
	client               upstream.Client
	keyGenerator         key.Generator
	cacheableStatusCodes map[int]struct{}
	logger               *slog.Logger
	expiration           time.Duration
	group                singleflight.Group
}

var (
	defaultLogger               = slog.Default()
	defaultCacheableStatusCodes = map[int]struct{}{200: {}}
	defaultExpiration           = 1 * time.Hour
)

type options struct {
	keyGenerator         key.Generator
	cacheableStatusCodes map[int]struct{}
	logger               *slog.Logger
	expiration           time.Duration
}

type Option interface {
	apply(opts *options)
}

var (
	_ Option = keyGeneratorOption{}
	_ Option = cacheableStatusCodesOption{}
	_ Option = loggerOption{}
	_ Option = expirationOption(0)
)

type keyGeneratorOption struct {
	keyGenerator key.Generator
}

func (o keyGeneratorOption) apply(opts *options) {
	opts.keyGenerator = o.keyGenerator
}

func WithKeyGenerator(keyGenerator key.Generator) keyGeneratorOption {
	return keyGeneratorOption{keyGenerator}
}

type cacheableStatusCodesOption []int

func (o cacheableStatusCodesOption) apply(opts *options) {
	opts.cacheableStatusCodes = map[int]struct{}{}
	for _, statusCode := range o {
		opts.cacheableStatusCodes[statusCode] = struct{}{}
	}
}

func WithCacheableStatusCodes(statusCodes []int) cacheableStatusCodesOption {
	return cacheableStatusCodesOption(statusCodes)
}

type loggerOption struct {
	logger *slog.Logger
}

func (o loggerOption) apply(opts *options) {
	opts.logger = o.logger
}

func WithLogger(logger *slog.Logger) loggerOption {
	return loggerOption{logger}
}

type expirationOption time.Duration

func (o expirationOption) apply(opts *options) {
	opts.expiration = time.Duration(o)
}

// WithExpiration overrides the default one-hour cache TTL.
func WithExpiration(expiration time.Duration) expirationOption {
	return expirationOption(expiration)
}

func New(engine cache.Engine, guard *quota.Guard, client upstream.Client, opts ...Option) *Relay {
	options := &options{
		keyGenerator:         key.NewGenerator(""),
		logger:               defaultLogger,
		cacheableStatusCodes: defaultCacheableStatusCodes,
		expiration:           defaultExpiration,
	}

	for _, o := range opts {
		o.apply(options)
	}

	return &Relay{
		engine:               engine,
		guard:                guard,
		client:               client,
		keyGenerator:         options.keyGenerator,
		logger:               options.logger,
		cacheableStatusCodes: options.cacheableStatusCodes,
		expiration:           options.expiration,
	}
}

// Do relays one logical request. The sequence is fixed: derive the canonical
// key, consult the cache, and only on a miss consult the guard and issue the
// upstream call. Concurrent misses on the same key are collapsed into a
// single guard consult and upstream call.
func (r *Relay) Do(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	cacheKey := r.keyGenerator.Key(path, query)

	payload, ok, err := r.engine.Lookup(ctx, cacheKey)
	if err != nil {
		r.logger.ErrorContext(ctx, "cache lookup failed, treating as miss", slog.Any("error", err))
	}
	if ok {
		// cache hit
		return payload, nil
	}

	maybePayload, err, _ := r.group.Do(cacheKey, func() (any, error) {
		decision := r.guard.TryConsume()
		if !decision.Allowed {
			status := r.guard.Peek()
			return nil, &QuotaExceededError{
				Limit:     r.guard.Limit(),
				Used:      status.Used,
				Remaining: decision.Remaining,
				ResetDay:  decision.Day,
			}
		}

		res, err := r.client.Call(ctx, path, query, nil)
		if err != nil {
			return nil, &UpstreamError{Err: err}
		}
		if res.Status >= 400 {
			return nil, &UpstreamError{Status: res.Status}
		}
		if _, ok := r.cacheableStatusCodes[res.Status]; ok {
			if err := r.engine.Store(ctx, cacheKey, res.Body, r.expiration); err != nil {
				r.logger.ErrorContext(ctx, "failed to store response in cache", slog.Any("error", err))
			}
		}
		return res.Body, nil
	})
	if err != nil {
		return nil, err
	}
	return maybePayload.(json.RawMessage), nil
}

// Quota exposes the guard's read-only status for diagnostics.
func (r *Relay) Quota() quota.Status {
	return r.guard.Peek()
}
