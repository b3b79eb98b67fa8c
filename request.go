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
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
)

// Request is the HTTP request abstraction handed to middleware and
// handlers. It is bound to the connection's Scope and receive channel and
// is constructed only after a route has matched.
//
// The body is assembled lazily: the first call to Body drains http.request
// messages from the transport until one arrives without more_body set.
type Request struct {
	scope   Scope
	receive ReceiveFunc

	pathParams   PathParams
	routePattern string
	handler      HandlerFunc // Terminal step of the middleware chain.

	bodyOnce sync.Once
	body     []byte
	bodyErr  error

	queryOnce sync.Once
	query     url.Values

	// values holds request-scoped data set by middleware (request IDs,
	// auth principals). Guarded by mu: middleware runs on one goroutine
	// per request, but handlers may fan out.
	mu     sync.RWMutex
	values map[string]any
}

// NewRequest constructs a Request bound to the given scope and receive
// channel. The dispatcher calls this after route matching; tests and
// adapters may call it directly.
func NewRequest(scope Scope, receive ReceiveFunc) *Request {
	return &Request{scope: scope, receive: receive}
}

// Scope returns the immutable connection descriptor.
func (r *Request) Scope() Scope { return r.scope }

// Method returns the HTTP method.
func (r *Request) Method() string { return r.scope.Method }

// Path returns the request path.
func (r *Request) Path() string { return r.scope.Path }

// Client returns the remote address reported by the transport.
func (r *Request) Client() string { return r.scope.Client }

// Header returns the first value of the named header, case-insensitively.
func (r *Request) Header(name string) string { return r.scope.Header(name) }

// RoutePattern returns the pattern of the matched route, e.g.
// "/users/{id}". Useful for logging and metrics labels that must not
// explode in cardinality.
func (r *Request) RoutePattern() string { return r.routePattern }

// Param returns the captured value of the named path parameter, or "".
func (r *Request) Param(name string) string { return r.pathParams[name] }

// Params returns the full parameter mapping for this request. The map is
// produced fresh per match and owned by this request.
func (r *Request) Params() PathParams { return r.pathParams }

// Query returns the parsed query values. Parsing happens once, lazily;
// a malformed query string yields empty values rather than an error, which
// matches how lenient transports treat it.
func (r *Request) Query() url.Values {
	r.queryOnce.Do(func() {
		q, err := url.ParseQuery(r.scope.RawQuery)
		if err != nil {
			q = url.Values{}
		}
		r.query = q
	})
	return r.query
}

// Body reads and returns the full request body. Subsequent calls return
// the same bytes. If the transport reports a disconnect mid-body, Body
// returns ErrClientDisconnected.
func (r *Request) Body(ctx context.Context) ([]byte, error) {
	r.bodyOnce.Do(func() {
		var buf []byte
		for {
			msg, err := r.receive(ctx)
			if err != nil {
				r.bodyErr = fmt.Errorf("receiving request body: %w", err)
				return
			}
			switch msg.Type {
			case MessageHTTPRequest:
				buf = append(buf, msg.Body...)
				if !msg.MoreBody {
					r.body = buf
					return
				}
			case MessageHTTPDisconnect:
				r.bodyErr = ErrClientDisconnected
				return
			default:
				// Unknown message types on the request stream are skipped;
				// the transport owns protocol conformance.
			}
		}
	})
	return r.body, r.bodyErr
}

// JSON decodes the request body into v.
func (r *Request) JSON(ctx context.Context, v any) error {
	body, err := r.Body(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// Set stores a request-scoped value under key.
func (r *Request) Set(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values == nil {
		r.values = make(map[string]any, 4)
	}
	r.values[key] = value
}

// Get returns the request-scoped value stored under key.
func (r *Request) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok
}
