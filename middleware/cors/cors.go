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

// Package cors handles Cross-Origin Resource Sharing: preflight requests
// short-circuit with 204, and allowed origins get the response headers
// browsers require.
package cors

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/skiff-dev/skiff"
)

// Option defines functional options for cors middleware configuration.
type Option func(*config)

type config struct {
	allowedOrigins   []string
	allowedMethods   []string
	allowedHeaders   []string
	exposedHeaders   []string
	allowCredentials bool
	maxAge           int
	allowAllOrigins  bool
	allowOriginFunc  func(origin string) bool
}

// defaultConfig is restrictive: no origins allowed until configured.
func defaultConfig() *config {
	return &config{
		allowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		allowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		maxAge:         3600,
	}
}

// WithAllowedOrigins sets the exact origins allowed.
func WithAllowedOrigins(origins ...string) Option {
	return func(c *config) { c.allowedOrigins = origins }
}

// WithAllowAllOrigins allows every origin. Avoid unless building a public
// API.
func WithAllowAllOrigins(allow bool) Option {
	return func(c *config) { c.allowAllOrigins = allow }
}

// WithAllowedMethods sets the methods advertised on preflight.
func WithAllowedMethods(methods ...string) Option {
	return func(c *config) { c.allowedMethods = methods }
}

// WithAllowedHeaders sets the request headers advertised on preflight.
func WithAllowedHeaders(headers ...string) Option {
	return func(c *config) { c.allowedHeaders = headers }
}

// WithExposedHeaders sets the response headers exposed to the client.
func WithExposedHeaders(headers ...string) Option {
	return func(c *config) { c.exposedHeaders = headers }
}

// WithAllowCredentials allows cookies and authorization headers.
// Incompatible with a wildcard origin; the specific origin is echoed
// instead.
func WithAllowCredentials(allow bool) Option {
	return func(c *config) { c.allowCredentials = allow }
}

// WithMaxAge sets the preflight cache lifetime in seconds.
func WithMaxAge(seconds int) Option {
	return func(c *config) { c.maxAge = seconds }
}

// WithAllowOriginFunc sets a dynamic origin validator.
func WithAllowOriginFunc(fn func(origin string) bool) Option {
	return func(c *config) { c.allowOriginFunc = fn }
}

// New returns a CORS middleware unit.
//
//	app.Use(cors.New(cors.WithAllowedOrigins("https://example.com")))
func New(opts ...Option) skiff.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	allowedMethodsHeader := strings.Join(cfg.allowedMethods, ", ")
	allowedHeadersHeader := strings.Join(cfg.allowedHeaders, ", ")
	exposedHeadersHeader := strings.Join(cfg.exposedHeaders, ", ")
	maxAgeHeader := strconv.Itoa(cfg.maxAge)

	return skiff.MiddlewareFunc(func(ctx context.Context, req *skiff.Request, next skiff.Next) (skiff.Response, error) {
		origin := req.Header("Origin")
		if origin == "" {
			// Not a CORS request.
			return next(ctx, req)
		}

		allowedOrigin := ""
		switch {
		case cfg.allowAllOrigins:
			allowedOrigin = "*"
		case cfg.allowOriginFunc != nil:
			if cfg.allowOriginFunc(origin) {
				allowedOrigin = origin
			}
		case slices.Contains(cfg.allowedOrigins, origin):
			allowedOrigin = origin
		}
		if allowedOrigin == "" {
			return next(ctx, req)
		}

		setCORS := func(hs skiff.HeaderSetter) {
			if cfg.allowCredentials && allowedOrigin == "*" {
				// Wildcard and credentials are incompatible; echo the
				// specific origin instead.
				hs.AddHeader("Access-Control-Allow-Origin", origin)
				hs.AddHeader("Access-Control-Allow-Credentials", "true")
			} else {
				hs.AddHeader("Access-Control-Allow-Origin", allowedOrigin)
				if cfg.allowCredentials {
					hs.AddHeader("Access-Control-Allow-Credentials", "true")
				}
			}
			if exposedHeadersHeader != "" {
				hs.AddHeader("Access-Control-Expose-Headers", exposedHeadersHeader)
			}
		}

		// Preflight: short-circuit without reaching inner units or the
		// handler.
		if req.Method() == http.MethodOptions {
			resp := skiff.NewText(http.StatusNoContent, "")
			setCORS(resp)
			resp.AddHeader("Access-Control-Allow-Methods", allowedMethodsHeader)
			resp.AddHeader("Access-Control-Allow-Headers", allowedHeadersHeader)
			resp.AddHeader("Access-Control-Max-Age", maxAgeHeader)
			return resp, nil
		}

		resp, err := next(ctx, req)
		if resp != nil {
			if hs, ok := resp.(skiff.HeaderSetter); ok {
				setCORS(hs)
			}
		}
		return resp, err
	})
}
