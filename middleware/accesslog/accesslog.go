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

// Package accesslog emits one structured log line per request with method,
// path, status, and duration.
package accesslog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/skiff-dev/skiff"
)

// Option defines functional options for accesslog middleware configuration.
type Option func(*config)

type config struct {
	logger          *slog.Logger
	excludePaths    map[string]bool
	excludePrefixes []string
	slowThreshold   time.Duration
}

func defaultConfig() *config {
	return &config{
		excludePaths: map[string]bool{},
	}
}

// WithLogger sets the structured logger. Without one the middleware skips
// logging entirely.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithExcludePaths excludes exact paths from logging (health checks,
// metrics scrapes).
func WithExcludePaths(paths ...string) Option {
	return func(c *config) {
		for _, p := range paths {
			c.excludePaths[p] = true
		}
	}
}

// WithExcludePrefixes excludes every path under the given prefixes.
func WithExcludePrefixes(prefixes ...string) Option {
	return func(c *config) {
		c.excludePrefixes = append(c.excludePrefixes, prefixes...)
	}
}

// WithSlowThreshold marks requests slower than d with slow=true.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *config) { c.slowThreshold = d }
}

// New returns an access-log middleware unit.
//
// The status code is read from the response through the StatusReporter
// capability; a response without it (or an error outcome) logs status 0
// and lets the entry stand for the attempt.
//
//	app.Use(accesslog.New(
//	    accesslog.WithLogger(logger),
//	    accesslog.WithExcludePaths("/healthz"),
//	))
func New(opts ...Option) skiff.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return skiff.MiddlewareFunc(func(ctx context.Context, req *skiff.Request, next skiff.Next) (skiff.Response, error) {
		if cfg.logger == nil {
			return next(ctx, req)
		}
		path := req.Path()
		if cfg.excludePaths[path] {
			return next(ctx, req)
		}
		for _, prefix := range cfg.excludePrefixes {
			if strings.HasPrefix(path, prefix) {
				return next(ctx, req)
			}
		}

		start := time.Now()
		resp, err := next(ctx, req)
		duration := time.Since(start)

		status := 0
		if sr, ok := resp.(skiff.StatusReporter); ok {
			status = sr.Status()
		}

		fields := []any{
			"method", req.Method(),
			"path", path,
			"route", req.RoutePattern(),
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"client", req.Client(),
		}
		if cfg.slowThreshold > 0 && duration >= cfg.slowThreshold {
			fields = append(fields, "slow", true)
		}
		if err != nil {
			fields = append(fields, "error", err)
			cfg.logger.Error("request", fields...)
		} else {
			cfg.logger.Info("request", fields...)
		}
		return resp, err
	})
}
