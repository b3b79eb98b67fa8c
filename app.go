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
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// noopLogger is a singleton no-op logger used when no logger is configured.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// NoopLogger returns the singleton no-op logger.
func NoopLogger() *slog.Logger {
	return noopLogger
}

// App is the connection dispatcher. It accepts inbound connection
// descriptions from a transport, matches them against registered routes,
// runs the middleware chain, and invokes application handlers, translating
// results and failures into protocol-correct responses.
//
// One App owns one state machine per connection kind: HTTP request/response,
// WebSocket connection lifetime, and process lifespan signaling.
//
// Routes, middleware, and lifecycle handlers are registered during a
// configuration phase. The app freezes on the first dispatched connection;
// registration afterward panics. After the freeze the route tables and the
// middleware chain are immutable, so dispatch requires no locking.
//
// Example:
//
//	app := skiff.MustNew(skiff.WithTitle("orders"))
//	app.GET("/orders/{id}", func(ctx context.Context, req *skiff.Request) (skiff.Response, error) {
//	    return skiff.NewJSON(http.StatusOK, map[string]string{"id": req.Param("id")}), nil
//	})
//	app.Serve(":8080")
type App struct {
	title   string
	version string
	debug   bool

	logger *slog.Logger
	tracer trace.Tracer

	router *router
	stack  *Stack

	startup  []LifecycleFunc
	shutdown []LifecycleFunc

	frozen atomic.Bool

	serverTimeouts *serverTimeouts
	server         *http.Server
	lifespan       *lifespanSession
	serverMu       sync.Mutex
}

// New creates an App with the given options. Configuration is validated
// immediately rather than at dispatch time.
//
// For a version that panics instead of returning an error, use MustNew.
func New(opts ...Option) (*App, error) {
	a := &App{
		title:   "skiff",
		version: "0.1.0",
		logger:  noopLogger,
		router:  &router{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("app configuration validation failed: %w", err)
	}
	a.stack = newStack(a.logger)
	return a, nil
}

// MustNew creates an App and panics if configuration is invalid.
func MustNew(opts ...Option) *App {
	a, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("skiff.MustNew: %v", err))
	}
	return a
}

// validate checks the app configuration for common errors.
func (a *App) validate() error {
	if a.serverTimeouts != nil {
		if err := a.serverTimeouts.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Title returns the configured application title.
func (a *App) Title() string { return a.title }

// Version returns the configured application version.
func (a *App) Version() string { return a.version }

// Debug reports whether debug mode is enabled.
func (a *App) Debug() bool { return a.debug }

// Logger returns the configured logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Frozen reports whether the app has started serving connections.
func (a *App) Frozen() bool { return a.frozen.Load() }

// checkFrozen panics if registration is attempted after the freeze.
func (a *App) checkFrozen() {
	if a.frozen.Load() {
		panic(ErrAppFrozen)
	}
}

// Handle is the transport entry point: one call per inbound connection,
// selecting the protocol state machine by scope type.
//
// Handle returns an error only for conditions the transport itself must
// deal with (unsupported scope type, send failures, lifespan handler
// failures). Application failures inside HTTP handling are translated into
// protocol-correct responses and are not returned.
func (a *App) Handle(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	a.frozen.Store(true)

	switch scope.Type {
	case ScopeHTTP:
		return a.handleHTTP(ctx, scope, receive, send)
	case ScopeWebSocket:
		return a.handleWebSocket(ctx, scope, receive, send)
	case ScopeLifespan:
		return a.handleLifespan(ctx, scope, receive, send)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScopeType, scope.Type)
	}
}

// handleHTTP runs the HTTP state machine: match the route, build the
// request, run the middleware chain, emit the response. Failures funnel
// through the exception translator into a well-formed JSON error response.
func (a *App) handleHTTP(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	route, params, ok := a.router.matchRoute(scope.Method, scope.Path)
	if !ok {
		notFound := NotFound(fmt.Sprintf("Route %s %s not found", scope.Method, scope.Path))
		return errorResponse(notFound).Respond(ctx, scope, receive, send)
	}

	var span trace.Span
	if a.tracer != nil {
		ctx, span = a.tracer.Start(ctx, fmt.Sprintf("HTTP %s %s", scope.Method, route.pattern),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", scope.Method),
				attribute.String("http.route", route.pattern),
				attribute.String("client.address", scope.Client),
			),
		)
		defer span.End()
		send = captureStatus(send, span)
	}

	req := NewRequest(scope, receive)
	req.routePattern = route.pattern

	resp, err := a.stack.Process(ctx, req, route.handler, params)
	if err != nil {
		resp = a.translate(err, scope)
		if span != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	if resp == nil {
		// A handler or middleware returned neither a response nor an
		// error. Treat it like any other undeclared failure.
		a.logger.Error("handler returned no response",
			"method", scope.Method,
			"path", scope.Path,
		)
		resp = internalErrorResponse()
	}

	if err := resp.Respond(ctx, scope, receive, send); err != nil {
		// The transport is gone or mid-stream; there is nothing left to
		// emit and no retry contract. Surface to the transport layer.
		a.logger.Error("sending response",
			"method", scope.Method,
			"path", scope.Path,
			"error", err,
		)
		return err
	}
	return nil
}

// translate maps a failure that escaped the middleware chain onto the
// response taxonomy: a declared failure keeps its declared status and
// detail, anything else becomes a generic 500 with no internal detail
// exposed.
func (a *App) translate(err error, scope Scope) Response {
	var declared *HTTPError
	if errors.As(err, &declared) {
		return errorResponse(declared)
	}
	a.logger.Error("unhandled dispatch error",
		"method", scope.Method,
		"path", scope.Path,
		"error", err,
	)
	return internalErrorResponse()
}

// handleWebSocket runs the WebSocket state machine. Once the handler is
// invoked it owns the connection lifetime; the dispatcher only translates
// a handler failure into a single abnormal close.
func (a *App) handleWebSocket(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	route, params, ok := a.router.matchWebSocketRoute(scope.Path)
	if !ok {
		ws := NewWebSocket(scope, receive, send)
		return ws.Close(ctx, http.StatusNotFound)
	}

	ws := NewWebSocket(scope, receive, send)
	ws.pathParams = params

	if err := a.invokeWebSocketHandler(ctx, route, ws); err != nil {
		a.logger.Error("websocket handler error",
			"path", scope.Path,
			"error", err,
		)
		// A secondary failure while closing is discarded so at most one
		// close outcome is ever observable by the transport.
		_ = ws.Close(ctx, CloseInternalError)
	}
	return nil
}

// invokeWebSocketHandler calls the handler with panic containment, so a
// panicking handler degrades to the same abnormal close as an error.
func (a *App) invokeWebSocketHandler(ctx context.Context, route *WebSocketRoute, ws *WebSocket) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in websocket handler: %v", r)
		}
	}()
	return route.handler(ctx, ws)
}

// handleLifespan runs the lifespan state machine: await a signal, run the
// corresponding handlers strictly sequentially, acknowledge. A handler
// failure propagates out unhandled, with no acknowledgement emitted;
// whatever owns process startup should treat it as fatal.
func (a *App) handleLifespan(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	for {
		msg, err := receive(ctx)
		if err != nil {
			return fmt.Errorf("receiving lifespan message: %w", err)
		}
		switch msg.Type {
		case MessageLifespanStartup:
			if err := a.runStartup(ctx); err != nil {
				return err
			}
			if err := send(ctx, Message{Type: MessageLifespanStartupComplete}); err != nil {
				return err
			}
		case MessageLifespanShutdown:
			if err := a.runShutdown(ctx); err != nil {
				return err
			}
			return send(ctx, Message{Type: MessageLifespanShutdownComplete})
		}
	}
}

// captureStatus wraps a SendFunc to record the response status on the
// span once the response start message passes through.
func captureStatus(send SendFunc, span trace.Span) SendFunc {
	return func(ctx context.Context, msg Message) error {
		if msg.Type == MessageHTTPResponseStart {
			span.SetAttributes(attribute.Int("http.response.status_code", msg.Status))
			if msg.Status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(msg.Status))
			}
		}
		return send(ctx, msg)
	}
}
