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

package skiff

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tracingUnit appends name on entry and exit so tests can assert the
// onion ordering.
func tracingUnit(name string, trace *[]string) Middleware {
	return MiddlewareFunc(func(ctx context.Context, req *Request, next Next) (Response, error) {
		*trace = append(*trace, name+":in")
		resp, err := next(ctx, req)
		*trace = append(*trace, name+":out")
		return resp, err
	})
}

func newTestRequest() *Request {
	return NewRequest(Scope{Type: ScopeHTTP, Method: http.MethodGet, Path: "/test"}, nil)
}

func TestStackOnionOrder(t *testing.T) {
	t.Parallel()

	var trace []string
	s := newStack(NoopLogger())
	s.Add(tracingUnit("a", &trace))
	s.Add(tracingUnit("b", &trace))
	s.Add(tracingUnit("c", &trace))

	handler := func(ctx context.Context, req *Request) (Response, error) {
		trace = append(trace, "handler")
		return NewText(http.StatusOK, "ok"), nil
	}

	_, err := s.Process(context.Background(), newTestRequest(), handler, PathParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:in", "b:in", "c:in", "handler", "c:out", "b:out", "a:out"}, trace)
}

func TestStackShortCircuit(t *testing.T) {
	t.Parallel()

	var trace []string
	s := newStack(NoopLogger())
	s.Add(tracingUnit("a", &trace))
	s.Add(MiddlewareFunc(func(ctx context.Context, req *Request, next Next) (Response, error) {
		trace = append(trace, "b:short")
		return NewText(http.StatusForbidden, "denied"), nil
	}))
	s.Add(tracingUnit("c", &trace))

	handler := func(ctx context.Context, req *Request) (Response, error) {
		trace = append(trace, "handler")
		return NewText(http.StatusOK, "ok"), nil
	}

	resp, err := s.Process(context.Background(), newTestRequest(), handler, PathParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:in", "b:short", "a:out"}, trace,
		"units inside the short-circuiting one must never run")
	assert.Equal(t, http.StatusForbidden, resp.(StatusReporter).Status())
}

func TestStackDeclaredFailurePassesThrough(t *testing.T) {
	t.Parallel()

	observed := make([]error, 0, 2)
	observer := MiddlewareFunc(func(ctx context.Context, req *Request, next Next) (Response, error) {
		resp, err := next(ctx, req)
		observed = append(observed, err)
		return resp, err
	})

	s := newStack(NoopLogger())
	s.Add(observer)
	s.Add(observer)

	declared := NewHTTPError(http.StatusTeapot, "short and stout")
	handler := func(ctx context.Context, req *Request) (Response, error) {
		return nil, declared
	}

	_, err := s.Process(context.Background(), newTestRequest(), handler, PathParams{})
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTeapot, httpErr.Status)
	assert.Equal(t, "short and stout", httpErr.Detail)
	for _, obs := range observed {
		assert.Same(t, declared, obs, "every layer must observe the identical declared failure")
	}
}

func TestStackUndeclaredFailureBecomes500(t *testing.T) {
	t.Parallel()

	s := newStack(NoopLogger())
	handler := func(ctx context.Context, req *Request) (Response, error) {
		return nil, errors.New("database exploded")
	}

	resp, err := s.Process(context.Background(), newTestRequest(), handler, PathParams{})
	require.NoError(t, err, "the boundary converts undeclared failures into a response")
	assert.Equal(t, http.StatusInternalServerError, resp.(StatusReporter).Status())

	body := respondBody(t, resp)
	assert.JSONEq(t, `{"detail": "Internal Server Error"}`, string(body),
		"internal error text must never leak")
}

func TestStackWrappedDeclaredFailure(t *testing.T) {
	t.Parallel()

	s := newStack(NoopLogger())
	handler := func(ctx context.Context, req *Request) (Response, error) {
		return nil, fmt.Errorf("looking up order: %w", NewHTTPError(http.StatusNotFound, "Order not found"))
	}

	_, err := s.Process(context.Background(), newTestRequest(), handler, PathParams{})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestStackPanicBecomes500(t *testing.T) {
	t.Parallel()

	s := newStack(NoopLogger())
	handler := func(ctx context.Context, req *Request) (Response, error) {
		panic("handler bug")
	}

	resp, err := s.Process(context.Background(), newTestRequest(), handler, PathParams{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.(StatusReporter).Status())
}

func TestStackLenIncludesBoundary(t *testing.T) {
	t.Parallel()

	s := newStack(NoopLogger())
	assert.Equal(t, 1, s.Len())
	s.Add(MiddlewareFunc(func(ctx context.Context, req *Request, next Next) (Response, error) {
		return next(ctx, req)
	}))
	assert.Equal(t, 2, s.Len())
}

func TestStackBindsParamsToRequest(t *testing.T) {
	t.Parallel()

	s := newStack(NoopLogger())
	handler := func(ctx context.Context, req *Request) (Response, error) {
		return NewText(http.StatusOK, req.Param("id")), nil
	}

	req := newTestRequest()
	resp, err := s.Process(context.Background(), req, handler, PathParams{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "42", resp.(*TextResponse).Text)
	assert.Equal(t, "42", req.Param("id"))
}

// respondBody runs Respond against a recording send and returns the
// accumulated body bytes.
func respondBody(t *testing.T, resp Response) []byte {
	t.Helper()
	var body []byte
	send := func(ctx context.Context, msg Message) error {
		if msg.Type == MessageHTTPResponseBody {
			body = append(body, msg.Body...)
		}
		return nil
	}
	require.NoError(t, resp.Respond(context.Background(), Scope{}, nil, send))
	return body
}
