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
	"fmt"
	"net/http"
)

// Route registers a handler for the given path pattern and methods.
// A segment wrapped as {name} captures that path segment as a parameter.
//
// Registration order is significant: the earliest-registered matching route
// wins, so a duplicate (pattern, method) registration is permitted but
// unreachable.
//
// Route panics on a malformed pattern or when called after the app has
// started serving; both are configuration-phase programmer errors.
func (a *App) Route(pattern string, handler HandlerFunc, methods ...string) {
	a.checkFrozen()
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}
	if err := a.router.addRoute(pattern, handler, methods); err != nil {
		panic(fmt.Sprintf("skiff: registering route %q: %v", pattern, err))
	}
}

// GET registers a handler for GET requests on pattern.
func (a *App) GET(pattern string, handler HandlerFunc) {
	a.Route(pattern, handler, http.MethodGet)
}

// POST registers a handler for POST requests on pattern.
func (a *App) POST(pattern string, handler HandlerFunc) {
	a.Route(pattern, handler, http.MethodPost)
}

// PUT registers a handler for PUT requests on pattern.
func (a *App) PUT(pattern string, handler HandlerFunc) {
	a.Route(pattern, handler, http.MethodPut)
}

// DELETE registers a handler for DELETE requests on pattern.
func (a *App) DELETE(pattern string, handler HandlerFunc) {
	a.Route(pattern, handler, http.MethodDelete)
}

// PATCH registers a handler for PATCH requests on pattern.
func (a *App) PATCH(pattern string, handler HandlerFunc) {
	a.Route(pattern, handler, http.MethodPatch)
}

// OPTIONS registers a handler for OPTIONS requests on pattern.
func (a *App) OPTIONS(pattern string, handler HandlerFunc) {
	a.Route(pattern, handler, http.MethodOptions)
}

// HEAD registers a handler for HEAD requests on pattern.
func (a *App) HEAD(pattern string, handler HandlerFunc) {
	a.Route(pattern, handler, http.MethodHead)
}

// WebSocket registers a handler owning the lifetime of WebSocket
// connections on pattern. WebSocket routes live in their own table; there
// is no method dimension.
func (a *App) WebSocket(pattern string, handler WebSocketHandlerFunc) {
	a.checkFrozen()
	if err := a.router.addWebSocketRoute(pattern, handler); err != nil {
		panic(fmt.Sprintf("skiff: registering websocket route %q: %v", pattern, err))
	}
}

// Use appends a middleware unit to the chain. The first unit added wraps
// outermost, directly inside the built-in exception boundary.
func (a *App) Use(m Middleware) {
	a.checkFrozen()
	a.stack.Add(m)
}

// UseFunc is a convenience for Use with a plain function.
func (a *App) UseFunc(f MiddlewareFunc) {
	a.Use(f)
}

// Routes returns the registered HTTP routes in registration order.
// Intended for startup logging and introspection.
func (a *App) Routes() []*Route {
	return a.router.routes
}

// WebSocketRoutes returns the registered WebSocket routes in registration
// order.
func (a *App) WebSocketRoutes() []*WebSocketRoute {
	return a.router.wsRoutes
}
