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

package binding_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiff-dev/skiff"
	"github.com/skiff-dev/skiff/binding"
)

type createUser struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Age   int    `json:"age" validate:"min=0,max=150"`
}

func requestWithBody(body string) *skiff.Request {
	delivered := false
	return skiff.NewRequest(skiff.Scope{Type: skiff.ScopeHTTP, Method: http.MethodPost}, func(ctx context.Context) (skiff.Message, error) {
		if delivered {
			return skiff.Message{Type: skiff.MessageHTTPDisconnect}, nil
		}
		delivered = true
		return skiff.Message{Type: skiff.MessageHTTPRequest, Body: []byte(body)}, nil
	})
}

func TestJSONValid(t *testing.T) {
	t.Parallel()

	var out createUser
	err := binding.JSON(context.Background(), requestWithBody(
		`{"name": "Alice", "email": "alice@example.com", "age": 30}`), &out)
	require.NoError(t, err)
	assert.Equal(t, "Alice", out.Name)
	assert.Equal(t, 30, out.Age)
}

func TestJSONEmptyBody(t *testing.T) {
	t.Parallel()

	var out createUser
	err := binding.JSON(context.Background(), requestWithBody(""), &out)

	var httpErr *skiff.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
}

func TestJSONMalformed(t *testing.T) {
	t.Parallel()

	var out createUser
	err := binding.JSON(context.Background(), requestWithBody(`{"name": `), &out)

	var httpErr *skiff.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Contains(t, httpErr.Detail, "Invalid JSON")
}

func TestJSONUnknownField(t *testing.T) {
	t.Parallel()

	var out createUser
	err := binding.JSON(context.Background(), requestWithBody(
		`{"name": "Alice", "email": "a@b.co", "nickname": "al"}`), &out)

	var httpErr *skiff.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Contains(t, httpErr.Detail, "unknown field")
}

func TestJSONValidationFailure(t *testing.T) {
	t.Parallel()

	var out createUser
	err := binding.JSON(context.Background(), requestWithBody(
		`{"name": "", "email": "not-an-email", "age": 200}`), &out)

	var httpErr *skiff.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Status)
	assert.Contains(t, httpErr.Detail, "name: is required")
	assert.Contains(t, httpErr.Detail, "email: must be a valid email address")
	assert.Contains(t, httpErr.Detail, "age: must be at most 150")
}

func TestJSONWrongFieldType(t *testing.T) {
	t.Parallel()

	var out createUser
	err := binding.JSON(context.Background(), requestWithBody(
		`{"name": "Alice", "email": "a@b.co", "age": "thirty"}`), &out)

	var httpErr *skiff.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Contains(t, httpErr.Detail, `"age"`)
}

func TestStructDirect(t *testing.T) {
	t.Parallel()

	require.NoError(t, binding.Struct(&createUser{Name: "Bob", Email: "bob@example.com"}))

	err := binding.Struct(&createUser{Name: "Bob", Email: "nope"})
	var httpErr *skiff.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Status)
}
