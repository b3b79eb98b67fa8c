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

package requestid_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiff-dev/skiff"
	"github.com/skiff-dev/skiff/middleware/requestid"
	"github.com/skiff-dev/skiff/skifftest"
)

func newApp(opts ...requestid.Option) *skiff.App {
	app := skiff.MustNew()
	app.Use(requestid.New(opts...))
	app.GET("/ping", func(ctx context.Context, req *skiff.Request) (skiff.Response, error) {
		return skiff.NewJSON(http.StatusOK, map[string]string{
			"request_id": requestid.FromRequest(req),
		}), nil
	})
	return app
}

func TestGeneratesID(t *testing.T) {
	t.Parallel()

	client := skifftest.New(newApp())
	resp, err := client.Get(context.Background(), "/ping")
	require.NoError(t, err)

	id := resp.Header("X-Request-ID")
	require.NotEmpty(t, id)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "generated IDs are UUIDs")

	var payload map[string]string
	require.NoError(t, resp.JSON(&payload))
	assert.Equal(t, id, payload["request_id"],
		"the handler sees the same ID the response carries")
}

func TestReusesClientID(t *testing.T) {
	t.Parallel()

	client := skifftest.New(newApp())
	resp, err := client.Get(context.Background(), "/ping",
		skifftest.WithHeader("X-Request-ID", "client-supplied"))
	require.NoError(t, err)

	assert.Equal(t, "client-supplied", resp.Header("X-Request-ID"))
}

func TestRejectsClientID(t *testing.T) {
	t.Parallel()

	client := skifftest.New(newApp(requestid.WithAllowClientID(false)))
	resp, err := client.Get(context.Background(), "/ping",
		skifftest.WithHeader("X-Request-ID", "client-supplied"))
	require.NoError(t, err)

	assert.NotEqual(t, "client-supplied", resp.Header("X-Request-ID"))
	assert.NotEmpty(t, resp.Header("X-Request-ID"))
}

func TestCustomHeaderAndGenerator(t *testing.T) {
	t.Parallel()

	client := skifftest.New(newApp(
		requestid.WithHeader("X-Trace-ID"),
		requestid.WithGenerator(func() string { return "fixed" }),
	))
	resp, err := client.Get(context.Background(), "/ping")
	require.NoError(t, err)

	assert.Equal(t, "fixed", resp.Header("X-Trace-ID"))
	assert.Empty(t, resp.Header("X-Request-ID"))
}

func TestFromRequestWithoutMiddleware(t *testing.T) {
	t.Parallel()

	req := skiff.NewRequest(skiff.Scope{Type: skiff.ScopeHTTP}, nil)
	assert.Empty(t, requestid.FromRequest(req))
}
