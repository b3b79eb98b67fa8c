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

// Package skifftest provides an in-memory transport for exercising a skiff
// App without sockets. It drives the dispatcher through the same
// scope/receive/send contract a real transport uses, and records every
// outbound message for assertions.
package skifftest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/skiff-dev/skiff"
)

// Client drives an App through the abstract transport contract.
type Client struct {
	app *skiff.App
}

// New returns a Client for the given app.
func New(app *skiff.App) *Client {
	return &Client{app: app}
}

// RequestOption customizes a test request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	body     []byte
	headers  []skiff.HeaderField
	rawQuery string
	client   string
}

// WithBody sets the raw request body.
func WithBody(body []byte) RequestOption {
	return func(c *requestConfig) { c.body = body }
}

// WithJSONBody marshals v as the request body and sets the content type.
func WithJSONBody(v any) RequestOption {
	return func(c *requestConfig) {
		body, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("skifftest: encoding request body: %v", err))
		}
		c.body = body
		c.headers = append(c.headers, skiff.HeaderField{Name: "content-type", Value: "application/json"})
	}
}

// WithHeader adds a request header.
func WithHeader(name, value string) RequestOption {
	return func(c *requestConfig) {
		c.headers = append(c.headers, skiff.HeaderField{Name: name, Value: value})
	}
}

// WithQuery sets the raw query string (without the leading '?').
func WithQuery(rawQuery string) RequestOption {
	return func(c *requestConfig) { c.rawQuery = rawQuery }
}

// WithClient sets the reported client address.
func WithClient(addr string) RequestOption {
	return func(c *requestConfig) { c.client = addr }
}

// Response is the recorded outcome of one HTTP exchange.
type Response struct {
	StatusCode int
	Headers    []skiff.HeaderField
	Body       []byte

	// Messages holds every outbound message in send order, for tests that
	// assert on the wire protocol itself.
	Messages []skiff.Message
}

// Header returns the first response header with the given name,
// case-insensitively.
func (r *Response) Header(name string) string {
	for _, h := range r.Headers {
		if equalFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Do dispatches one HTTP request through the app and records the response.
func (c *Client) Do(ctx context.Context, method, path string, opts ...RequestOption) (*Response, error) {
	cfg := &requestConfig{client: "127.0.0.1:54321"}
	for _, opt := range opts {
		opt(cfg)
	}

	scope := skiff.Scope{
		Type:     skiff.ScopeHTTP,
		Method:   method,
		Path:     path,
		RawQuery: cfg.rawQuery,
		Headers:  cfg.headers,
		Client:   cfg.client,
	}

	delivered := false
	receive := func(ctx context.Context) (skiff.Message, error) {
		if delivered {
			return skiff.Message{Type: skiff.MessageHTTPDisconnect}, nil
		}
		delivered = true
		return skiff.Message{Type: skiff.MessageHTTPRequest, Body: cfg.body}, nil
	}

	resp := &Response{}
	send := func(ctx context.Context, msg skiff.Message) error {
		resp.Messages = append(resp.Messages, msg)
		switch msg.Type {
		case skiff.MessageHTTPResponseStart:
			resp.StatusCode = msg.Status
			resp.Headers = msg.Headers
		case skiff.MessageHTTPResponseBody:
			resp.Body = append(resp.Body, msg.Body...)
		}
		return nil
	}

	if err := c.app.Handle(ctx, scope, receive, send); err != nil {
		return nil, err
	}
	return resp, nil
}

// Get dispatches a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, opts...)
}

// Post dispatches a POST request.
func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, opts...)
}

// Put dispatches a PUT request.
func (c *Client) Put(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, opts...)
}

// Delete dispatches a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, opts...)
}

// equalFold is an ASCII-only case-insensitive comparison.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
