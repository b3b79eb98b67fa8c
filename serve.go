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
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// bodyChunkSize is the read size for streaming request bodies into
// http.request messages.
const bodyChunkSize = 32 << 10

// ServeHTTP implements http.Handler by bridging the stdlib server onto the
// scope/receive/send contract. The stdlib owns sockets, TLS, and HTTP
// parsing; the dispatcher still only consumes the abstract contract.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		a.serveWebSocket(w, r)
		return
	}

	scope := Scope{
		Type:     ScopeHTTP,
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Headers:  headerFields(r.Header),
		Client:   r.RemoteAddr,
	}

	receive := bodyReceiver(r)
	send := responseSender(w)

	if err := a.Handle(r.Context(), scope, receive, send); err != nil {
		a.logger.Error("http dispatch failed", "path", r.URL.Path, "error", err)
	}
}

// bodyReceiver streams the request body as http.request messages. After
// the final body message, further receives report a disconnect once the
// request context ends.
func bodyReceiver(r *http.Request) ReceiveFunc {
	done := false
	return func(ctx context.Context) (Message, error) {
		if done {
			// Body fully delivered; the only remaining event on this
			// stream is the client going away.
			<-ctx.Done()
			return Message{Type: MessageHTTPDisconnect}, nil
		}
		buf := make([]byte, bodyChunkSize)
		n, err := r.Body.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return Message{}, err
		}
		more := !errors.Is(err, io.EOF)
		if !more {
			done = true
		}
		return Message{Type: MessageHTTPRequest, Body: buf[:n], MoreBody: more}, nil
	}
}

// responseSender writes response messages onto the stdlib ResponseWriter.
func responseSender(w http.ResponseWriter) SendFunc {
	started := false
	return func(ctx context.Context, msg Message) error {
		switch msg.Type {
		case MessageHTTPResponseStart:
			if started {
				return nil // One start message per exchange.
			}
			started = true
			for _, h := range msg.Headers {
				w.Header().Add(h.Name, h.Value)
			}
			w.WriteHeader(msg.Status)
		case MessageHTTPResponseBody:
			if len(msg.Body) > 0 {
				if _, err := w.Write(msg.Body); err != nil {
					return err
				}
			}
			if msg.MoreBody {
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
		}
		return nil
	}
}

// upgrader performs the WebSocket handshake. The default origin policy
// (same-origin) applies; a cross-origin deployment should sit behind a
// gateway that rewrites the Origin header or terminate WebSockets with a
// custom adapter.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 << 10,
	WriteBufferSize: 4 << 10,
}

// serveWebSocket upgrades the connection and bridges gorilla/websocket
// frames onto the abstract websocket message protocol.
func (a *App) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure response.
		a.logger.Error("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return
	}
	defer conn.Close()

	scope := Scope{
		Type:    ScopeWebSocket,
		Path:    r.URL.Path,
		Headers: headerFields(r.Header),
		Client:  r.RemoteAddr,
	}

	connectDelivered := false
	receive := func(ctx context.Context) (Message, error) {
		if !connectDelivered {
			connectDelivered = true
			return Message{Type: MessageWebSocketConnect}, nil
		}
		kind, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return Message{Type: MessageWebSocketDisconnect, Code: closeErr.Code}, nil
			}
			return Message{Type: MessageWebSocketDisconnect, Code: websocket.CloseAbnormalClosure}, nil
		}
		if kind == websocket.TextMessage {
			return Message{Type: MessageWebSocketReceive, Text: string(data)}, nil
		}
		return Message{Type: MessageWebSocketReceive, Body: data}, nil
	}

	send := func(ctx context.Context, msg Message) error {
		switch msg.Type {
		case MessageWebSocketAccept:
			// The HTTP upgrade already accepted the connection; accept
			// headers cannot be added after the handshake.
			return nil
		case MessageWebSocketSend:
			if msg.Body != nil {
				return conn.WriteMessage(websocket.BinaryMessage, msg.Body)
			}
			return conn.WriteMessage(websocket.TextMessage, []byte(msg.Text))
		case MessageWebSocketClose:
			code := msg.Code
			if code < 1000 || code >= 5000 {
				// Application-level codes outside the RFC 6455 range (the
				// dispatcher's 404 for unmatched paths) map to policy
				// violation on the wire.
				code = websocket.ClosePolicyViolation
			}
			deadline := time.Now().Add(5 * time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, ""), deadline)
			return conn.Close()
		}
		return nil
	}

	if err := a.Handle(r.Context(), scope, receive, send); err != nil {
		a.logger.Error("websocket dispatch failed", "path", r.URL.Path, "error", err)
	}
}

// headerFields flattens an http.Header into transport-order pairs.
func headerFields(h http.Header) []HeaderField {
	fields := make([]HeaderField, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			fields = append(fields, HeaderField{Name: name, Value: v})
		}
	}
	return fields
}

// lifespanSession drives the lifespan connection for a running server. It
// owns the in-process signal and ack channels and the goroutine running the
// lifespan dispatch loop.
type lifespanSession struct {
	signals chan Message
	acks    chan Message
	done    chan error
}

// startLifespan opens the lifespan connection and starts the dispatch loop.
func (a *App) startLifespan(ctx context.Context) *lifespanSession {
	l := &lifespanSession{
		signals: make(chan Message),
		acks:    make(chan Message, 2),
		done:    make(chan error, 1),
	}

	receive := func(ctx context.Context) (Message, error) {
		select {
		case msg := <-l.signals:
			return msg, nil
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
	send := func(ctx context.Context, msg Message) error {
		l.acks <- msg
		return nil
	}

	go func() {
		l.done <- a.Handle(ctx, Scope{Type: ScopeLifespan}, receive, send)
	}()
	return l
}

// signal delivers a lifespan event and waits for its completion ack. A
// handler failure surfaces as the dispatch error instead of an ack.
func (l *lifespanSession) signal(ctx context.Context, event, wantAck string) error {
	select {
	case l.signals <- Message{Type: event}:
	case err := <-l.done:
		if err != nil {
			return err
		}
		return fmt.Errorf("lifespan connection closed before %s", event)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case ack := <-l.acks:
		if ack.Type != wantAck {
			return fmt.Errorf("unexpected lifespan ack %q, want %q", ack.Type, wantAck)
		}
		return nil
	case err := <-l.done:
		if err != nil {
			return err
		}
		// Clean exit: the loop may have acked just before returning.
		select {
		case ack := <-l.acks:
			if ack.Type != wantAck {
				return fmt.Errorf("unexpected lifespan ack %q, want %q", ack.Type, wantAck)
			}
			return nil
		default:
			return fmt.Errorf("lifespan connection closed before acking %s", event)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve starts an HTTP server on addr with production-safe timeouts and
// blocks until the server exits. Startup handlers run to completion before
// the listener opens; a startup failure aborts boot and is returned. For
// graceful shutdown, call Shutdown from another goroutine.
func (a *App) Serve(addr string) error {
	ls := a.startLifespan(context.Background())
	if err := ls.signal(context.Background(), MessageLifespanStartup, MessageLifespanStartupComplete); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	timeouts := a.serverTimeouts
	if timeouts == nil {
		timeouts = defaultServerTimeouts()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           a,
		ReadHeaderTimeout: timeouts.readHeader,
		ReadTimeout:       timeouts.read,
		WriteTimeout:      timeouts.write,
		IdleTimeout:       timeouts.idle,
	}

	a.serverMu.Lock()
	a.server = srv
	a.lifespan = ls
	a.serverMu.Unlock()

	a.logger.Info("server starting", "title", a.title, "version", a.version, "addr", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server started by Serve without
// interrupting active connections, then runs the shutdown handlers. It
// returns nil if no server is running.
func (a *App) Shutdown(ctx context.Context) error {
	a.serverMu.Lock()
	srv := a.server
	ls := a.lifespan
	a.server = nil
	a.lifespan = nil
	a.serverMu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	if ls != nil {
		if lsErr := ls.signal(ctx, MessageLifespanShutdown, MessageLifespanShutdownComplete); lsErr != nil && err == nil {
			err = lsErr
		}
	}
	return err
}
