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

package cors_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiff-dev/skiff"
	"github.com/skiff-dev/skiff/middleware/cors"
	"github.com/skiff-dev/skiff/skifftest"
)

func newApp(opts ...cors.Option) (*skiff.App, *bool) {
	handled := false
	app := skiff.MustNew()
	app.Use(cors.New(opts...))
	handler := func(ctx context.Context, req *skiff.Request) (skiff.Response, error) {
		handled = true
		return skiff.NewJSON(http.StatusOK, map[string]string{"ok": "yes"}), nil
	}
	app.Route("/data", handler, http.MethodGet, http.MethodOptions)
	return app, &handled
}

func TestNonCORSRequestUntouched(t *testing.T) {
	t.Parallel()

	app, _ := newApp(cors.WithAllowedOrigins("https://example.com"))
	resp, err := skifftest.New(app).Get(context.Background(), "/data")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header("Access-Control-Allow-Origin"))
}

func TestAllowedOriginGetsHeaders(t *testing.T) {
	t.Parallel()

	app, _ := newApp(cors.WithAllowedOrigins("https://example.com"))
	resp, err := skifftest.New(app).Get(context.Background(), "/data",
		skifftest.WithHeader("Origin", "https://example.com"))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", resp.Header("Access-Control-Allow-Origin"))
}

func TestDisallowedOriginGetsNoHeaders(t *testing.T) {
	t.Parallel()

	app, _ := newApp(cors.WithAllowedOrigins("https://example.com"))
	resp, err := skifftest.New(app).Get(context.Background(), "/data",
		skifftest.WithHeader("Origin", "https://evil.test"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode,
		"the request is still served, just without CORS headers")
	assert.Empty(t, resp.Header("Access-Control-Allow-Origin"))
}

func TestPreflightShortCircuits(t *testing.T) {
	t.Parallel()

	app, handled := newApp(
		cors.WithAllowedOrigins("https://example.com"),
		cors.WithAllowedMethods("GET", "POST"),
		cors.WithMaxAge(600),
	)
	resp, err := skifftest.New(app).Do(context.Background(), http.MethodOptions, "/data",
		skifftest.WithHeader("Origin", "https://example.com"),
		skifftest.WithHeader("Access-Control-Request-Method", "GET"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, *handled, "a preflight never reaches the handler")
	assert.Equal(t, "https://example.com", resp.Header("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", resp.Header("Access-Control-Allow-Methods"))
	assert.Equal(t, "600", resp.Header("Access-Control-Max-Age"))
	assert.NotEmpty(t, resp.Header("Access-Control-Allow-Headers"))
}

func TestAllowAllOrigins(t *testing.T) {
	t.Parallel()

	app, _ := newApp(cors.WithAllowAllOrigins(true))
	resp, err := skifftest.New(app).Get(context.Background(), "/data",
		skifftest.WithHeader("Origin", "https://anything.test"))
	require.NoError(t, err)

	assert.Equal(t, "*", resp.Header("Access-Control-Allow-Origin"))
}

func TestCredentialsNeverCombineWithWildcard(t *testing.T) {
	t.Parallel()

	app, _ := newApp(cors.WithAllowAllOrigins(true), cors.WithAllowCredentials(true))
	resp, err := skifftest.New(app).Get(context.Background(), "/data",
		skifftest.WithHeader("Origin", "https://anything.test"))
	require.NoError(t, err)

	assert.Equal(t, "https://anything.test", resp.Header("Access-Control-Allow-Origin"),
		"credentials force the specific origin to be echoed")
	assert.Equal(t, "true", resp.Header("Access-Control-Allow-Credentials"))
}

func TestAllowOriginFunc(t *testing.T) {
	t.Parallel()

	app, _ := newApp(cors.WithAllowOriginFunc(func(origin string) bool {
		return origin == "https://dynamic.test"
	}))

	resp, err := skifftest.New(app).Get(context.Background(), "/data",
		skifftest.WithHeader("Origin", "https://dynamic.test"))
	require.NoError(t, err)
	assert.Equal(t, "https://dynamic.test", resp.Header("Access-Control-Allow-Origin"))

	resp, err = skifftest.New(app).Get(context.Background(), "/data",
		skifftest.WithHeader("Origin", "https://other.test"))
	require.NoError(t, err)
	assert.Empty(t, resp.Header("Access-Control-Allow-Origin"))
}

func TestExposedHeaders(t *testing.T) {
	t.Parallel()

	app, _ := newApp(
		cors.WithAllowedOrigins("https://example.com"),
		cors.WithExposedHeaders("X-Request-ID", "X-Total-Count"),
	)
	resp, err := skifftest.New(app).Get(context.Background(), "/data",
		skifftest.WithHeader("Origin", "https://example.com"))
	require.NoError(t, err)

	assert.Equal(t, "X-Request-ID, X-Total-Count", resp.Header("Access-Control-Expose-Headers"))
}
