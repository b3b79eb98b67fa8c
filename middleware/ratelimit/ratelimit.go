// Copyright 2025 The Skiff Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit provides token-bucket request limiting keyed by
// client, with stale bucket eviction.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/skiff-dev/skiff"
)

// KeyFunc derives the bucket key for a request. The default keys by
// client address.
type KeyFunc func(req *skiff.Request) string

// Option defines functional options for ratelimit middleware configuration.
type Option func(*config)

type config struct {
	limit   rate.Limit
	burst   int
	keyFunc KeyFunc
	ttl     time.Duration
}

func defaultConfig() *config {
	return &config{
		limit:   rate.Limit(100),
		burst:   100,
		keyFunc: func(req *skiff.Request) string { return req.Client() },
		ttl:     10 * time.Minute,
	}
}

// WithRate sets the sustained requests-per-second rate.
func WithRate(perSecond float64) Option {
	return func(c *config) { c.limit = rate.Limit(perSecond) }
}

// WithBurst sets the bucket capacity.
func WithBurst(n int) Option {
	return func(c *config) { c.burst = n }
}

// WithKeyFunc sets how requests map to buckets.
func WithKeyFunc(fn KeyFunc) Option {
	return func(c *config) { c.keyFunc = fn }
}

// WithTTL sets how long an idle bucket survives before eviction.
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiter struct {
	cfg     *config
	mu      sync.Mutex
	buckets map[string]*bucket
	sweepAt time.Time
}

func (l *limiter) allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.sweepAt) {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.cfg.ttl {
				delete(l.buckets, k)
			}
		}
		l.sweepAt = now.Add(l.cfg.ttl)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.cfg.limit, l.cfg.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// New returns a rate limiting middleware unit. Requests over the limit
// fail with 429 before reaching inner units or the handler.
//
//	app.Use(ratelimit.New(ratelimit.WithRate(10), ratelimit.WithBurst(20)))
func New(opts ...Option) skiff.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	l := &limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		sweepAt: time.Now().Add(cfg.ttl),
	}

	return skiff.MiddlewareFunc(func(ctx context.Context, req *skiff.Request, next skiff.Next) (skiff.Response, error) {
		if !l.allow(cfg.keyFunc(req)) {
			return nil, skiff.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
		}
		return next(ctx, req)
	})
}
