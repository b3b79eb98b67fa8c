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
	"log/slog"
	"sync"
)

// HandlerFunc is an application request handler. It receives the request
// (which carries the captured path parameters) and returns the response to
// emit, or an error. Returning an *HTTPError declares the exact status and
// detail of the failure response; any other error becomes a generic 500.
type HandlerFunc func(ctx context.Context, req *Request) (Response, error)

// WebSocketHandlerFunc is an application WebSocket handler. It owns the
// entire connection lifetime: accept, receive/send loop, and close.
type WebSocketHandlerFunc func(ctx context.Context, ws *WebSocket) error

// Next continues the middleware chain toward the terminal handler.
// A middleware unit may call it zero times (short-circuit) or exactly once;
// calling it more than once is undefined behavior.
type Next func(ctx context.Context, req *Request) (Response, error)

// Middleware is one composable request-processing unit. Given a request and
// a continuation, it produces a response, optionally by invoking the
// continuation.
type Middleware interface {
	Process(ctx context.Context, req *Request, next Next) (Response, error)
}

// MiddlewareFunc adapts a plain function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, req *Request, next Next) (Response, error)

// Process implements Middleware.
func (f MiddlewareFunc) Process(ctx context.Context, req *Request, next Next) (Response, error) {
	return f(ctx, req, next)
}

// Stack composes an ordered chain of middleware units around a terminal
// handler. The first unit added wraps outermost; the last added sits
// closest to the handler (onion composition).
//
// The chain always contains exactly one built-in outermost unit performing
// exception translation, plus every unit added with Add, in order.
//
// Thread safety: units are added only during the configuration phase. The
// composed chain is folded exactly once, lazily, and afterwards carries no
// mutable state of its own; concurrent invocations share nothing but the
// immutable fold, so one invocation serves exactly one request.
type Stack struct {
	units   []Middleware
	logger  *slog.Logger
	once    sync.Once
	chained Next
}

// newStack returns a Stack whose outermost unit is the exception boundary.
func newStack(logger *slog.Logger) *Stack {
	s := &Stack{logger: logger}
	s.units = append(s.units, errorBoundary(logger))
	return s
}

// Add appends a middleware unit to the chain. Units added earlier wrap
// units added later.
func (s *Stack) Add(m Middleware) {
	s.units = append(s.units, m)
}

// Len returns the number of units in the chain, including the built-in
// exception boundary.
func (s *Stack) Len() int { return len(s.units) }

// Process runs the request through the composed chain. The terminal step
// invokes the matched route's handler with the request, whose path
// parameters have been bound by the dispatcher.
func (s *Stack) Process(ctx context.Context, req *Request, handler HandlerFunc, params PathParams) (Response, error) {
	req.handler = handler
	req.pathParams = params
	return s.chain()(ctx, req)
}

// chain folds the unit list into a single invocable, exactly once. The
// terminal step reads the handler from the request, so one fold serves
// every route; all per-request control state (call order, short-circuit
// decisions) lives on the invocation's call stack.
func (s *Stack) chain() Next {
	s.once.Do(func() {
		next := Next(func(ctx context.Context, req *Request) (Response, error) {
			return req.handler(ctx, req)
		})
		for i := len(s.units) - 1; i >= 0; i-- {
			unit := s.units[i]
			inner := next
			next = func(ctx context.Context, req *Request) (Response, error) {
				return unit.Process(ctx, req, inner)
			}
		}
		s.chained = next
	})
	return s.chained
}

// errorBoundary is the built-in outermost unit. It invokes the rest of the
// chain inside a protective boundary:
//
//   - a declared *HTTPError propagates unchanged, so the ultimate response
//     carries the declared status and detail;
//   - any other error is logged once and converted to a generic 500
//     response, exposing no internal detail;
//   - a panic in the chain is recovered and treated as an undeclared
//     failure.
func errorBoundary(logger *slog.Logger) Middleware {
	return MiddlewareFunc(func(ctx context.Context, req *Request, next Next) (resp Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in handler chain",
					"method", req.Method(),
					"path", req.Path(),
					"panic", r,
				)
				resp = internalErrorResponse()
				err = nil
			}
		}()

		resp, err = next(ctx, req)
		if err == nil {
			return resp, nil
		}
		var declared *HTTPError
		if errors.As(err, &declared) {
			// Declared failure: pass through unchanged.
			return nil, err
		}

		logger.Error("unhandled error in handler chain",
			"method", req.Method(),
			"path", req.Path(),
			"error", err,
		)
		return internalErrorResponse(), nil
	})
}
