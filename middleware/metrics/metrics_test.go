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

package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiff-dev/skiff"
	"github.com/skiff-dev/skiff/middleware/metrics"
	"github.com/skiff-dev/skiff/skifftest"
)

// scrape returns the exposition body for the recorder.
func scrape(t *testing.T, rec *metrics.Recorder) string {
	t.Helper()
	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func newApp(rec *metrics.Recorder) *skiff.App {
	app := skiff.MustNew()
	app.Use(rec.Middleware())
	app.GET("/items/{id}", func(ctx context.Context, req *skiff.Request) (skiff.Response, error) {
		return skiff.NewJSON(http.StatusOK, nil), nil
	})
	app.GET("/denied", func(ctx context.Context, req *skiff.Request) (skiff.Response, error) {
		return nil, skiff.NewHTTPError(http.StatusForbidden, "No access")
	})
	return app
}

func TestCountsByMethodRouteStatus(t *testing.T) {
	t.Parallel()

	rec := metrics.New(metrics.WithNamespace("test"))
	client := skifftest.New(newApp(rec))

	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), "/items/1")
		require.NoError(t, err)
	}
	_, err := client.Get(context.Background(), "/denied")
	require.NoError(t, err)

	body := scrape(t, rec)
	assert.Contains(t, body,
		`test_requests_total{method="GET",route="/items/{id}",status="200"} 3`,
		"requests are labeled by route pattern, not raw path")
	assert.Contains(t, body,
		`test_requests_total{method="GET",route="/denied",status="403"} 1`,
		"a declared failure counts under its declared status")
	assert.Contains(t, body, `test_request_duration_seconds_count{method="GET",route="/items/{id}"} 3`)
}

func TestUndeclaredFailureCountsAs500(t *testing.T) {
	t.Parallel()

	rec := metrics.New(metrics.WithNamespace("test"))
	app := skiff.MustNew()
	app.Use(rec.Middleware())
	app.GET("/boom", func(ctx context.Context, req *skiff.Request) (skiff.Response, error) {
		return nil, assert.AnError
	})

	_, err := skifftest.New(app).Get(context.Background(), "/boom")
	require.NoError(t, err)

	body := scrape(t, rec)
	assert.Contains(t, body, `test_requests_total{method="GET",route="/boom",status="500"} 1`)
}

func TestExcludePaths(t *testing.T) {
	t.Parallel()

	rec := metrics.New(
		metrics.WithNamespace("test"),
		metrics.WithExcludePaths("/items/1"),
	)
	client := skifftest.New(newApp(rec))

	_, err := client.Get(context.Background(), "/items/1")
	require.NoError(t, err)

	body := scrape(t, rec)
	assert.NotContains(t, body, `test_requests_total{`)
}
