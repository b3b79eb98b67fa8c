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

// Package requestid tags every request with a unique identifier for log
// correlation.
package requestid

import (
	"context"

	"github.com/google/uuid"

	"github.com/skiff-dev/skiff"
)

// Key is the request-scoped value key under which the request ID is stored.
const Key = "request_id"

// defaultHeader carries the request ID in both directions.
const defaultHeader = "X-Request-ID"

// Option defines functional options for requestid middleware configuration.
type Option func(*config)

type config struct {
	headerName    string
	generator     func() string
	allowClientID bool
}

func defaultConfig() *config {
	return &config{
		headerName:    defaultHeader,
		generator:     uuid.NewString,
		allowClientID: true,
	}
}

// WithHeader sets the header name used to carry the request ID.
func WithHeader(name string) Option {
	return func(c *config) { c.headerName = name }
}

// WithGenerator sets a custom ID generator.
func WithGenerator(generator func() string) Option {
	return func(c *config) { c.generator = generator }
}

// WithAllowClientID controls whether an ID supplied by the client is
// trusted and reused. Disable when client-controlled IDs could pollute
// log correlation.
func WithAllowClientID(allow bool) Option {
	return func(c *config) { c.allowClientID = allow }
}

// New returns a middleware unit that attaches a unique request ID to each
// request and echoes it on the response.
//
//	app.Use(requestid.New())
func New(opts ...Option) skiff.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return skiff.MiddlewareFunc(func(ctx context.Context, req *skiff.Request, next skiff.Next) (skiff.Response, error) {
		id := ""
		if cfg.allowClientID {
			id = req.Header(cfg.headerName)
		}
		if id == "" {
			id = cfg.generator()
		}
		req.Set(Key, id)

		resp, err := next(ctx, req)
		if resp != nil {
			if hs, ok := resp.(skiff.HeaderSetter); ok {
				hs.AddHeader(cfg.headerName, id)
			}
		}
		return resp, err
	})
}

// FromRequest returns the request ID set by this middleware, or "".
func FromRequest(req *skiff.Request) string {
	if v, ok := req.Get(Key); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
