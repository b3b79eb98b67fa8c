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

package ratelimit_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiff-dev/skiff"
	"github.com/skiff-dev/skiff/middleware/ratelimit"
	"github.com/skiff-dev/skiff/skifftest"
)

func newApp(opts ...ratelimit.Option) (*skiff.App, *int) {
	served := 0
	app := skiff.MustNew()
	app.Use(ratelimit.New(opts...))
	app.GET("/data", func(ctx context.Context, req *skiff.Request) (skiff.Response, error) {
		served++
		return skiff.NewText(http.StatusOK, "ok"), nil
	})
	return app, &served
}

func TestOverLimitRejectedWith429(t *testing.T) {
	t.Parallel()

	app, served := newApp(ratelimit.WithRate(0.001), ratelimit.WithBurst(2))
	client := skifftest.New(app)

	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), "/data")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := client.Get(context.Background(), "/data")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"detail": "Rate limit exceeded"}`, string(resp.Body))
	assert.Equal(t, 2, *served, "a rejected request never reaches the handler")
}

func TestKeysAreIndependent(t *testing.T) {
	t.Parallel()

	app, _ := newApp(ratelimit.WithRate(0.001), ratelimit.WithBurst(1))
	client := skifftest.New(app)

	resp, err := client.Get(context.Background(), "/data",
		skifftest.WithClient("10.0.0.1:1000"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Same bucket: exhausted.
	resp, err = client.Get(context.Background(), "/data",
		skifftest.WithClient("10.0.0.1:1000"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// A different client has its own bucket.
	resp, err = client.Get(context.Background(), "/data",
		skifftest.WithClient("10.0.0.2:1000"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCustomKeyFunc(t *testing.T) {
	t.Parallel()

	app, _ := newApp(
		ratelimit.WithRate(0.001),
		ratelimit.WithBurst(1),
		ratelimit.WithKeyFunc(func(req *skiff.Request) string {
			return req.Header("X-API-Key")
		}),
	)
	client := skifftest.New(app)

	resp, err := client.Get(context.Background(), "/data",
		skifftest.WithHeader("X-API-Key", "alpha"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(context.Background(), "/data",
		skifftest.WithHeader("X-API-Key", "alpha"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, err = client.Get(context.Background(), "/data",
		skifftest.WithHeader("X-API-Key", "beta"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
