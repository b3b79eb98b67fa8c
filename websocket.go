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
)

// WebSocket connection states.
const (
	wsConnecting = iota
	wsAccepted
	wsClosed
)

// CloseNormal is the normal closure code.
const CloseNormal = 1000

// CloseInternalError is the abnormal closure code emitted when a handler
// fails during the connection lifetime.
const CloseInternalError = 1011

// WebSocket is the connection abstraction handed to WebSocket handlers.
// The handler owns the entire connection lifetime: it must Accept before
// exchanging frames, and should Close when done. The dispatcher does not
// intervene after invoking the handler except to translate a handler error
// into an abnormal close.
//
// A WebSocket serves one connection on one handler goroutine; it is not
// safe for concurrent use.
type WebSocket struct {
	scope      Scope
	receive    ReceiveFunc
	send       SendFunc
	state      int
	pathParams PathParams
}

// NewWebSocket constructs a WebSocket bound to the given transport
// channels. The dispatcher calls this; tests and adapters may too.
func NewWebSocket(scope Scope, receive ReceiveFunc, send SendFunc) *WebSocket {
	return &WebSocket{scope: scope, receive: receive, send: send}
}

// Scope returns the immutable connection descriptor.
func (ws *WebSocket) Scope() Scope { return ws.scope }

// Path returns the connection path.
func (ws *WebSocket) Path() string { return ws.scope.Path }

// Header returns the first value of the named handshake header.
func (ws *WebSocket) Header(name string) string { return ws.scope.Header(name) }

// Param returns the captured value of the named path parameter, or "".
func (ws *WebSocket) Param(name string) string { return ws.pathParams[name] }

// Accept completes the handshake: it consumes the websocket.connect
// message and emits websocket.accept with any extra headers. It must be
// called exactly once, before any frame exchange.
func (ws *WebSocket) Accept(ctx context.Context, headers ...HeaderField) error {
	if ws.state != wsConnecting {
		return ErrAlreadyAccepted
	}
	msg, err := ws.receive(ctx)
	if err != nil {
		return fmt.Errorf("awaiting websocket connect: %w", err)
	}
	if msg.Type != MessageWebSocketConnect {
		return fmt.Errorf("expected %s, got %s", MessageWebSocketConnect, msg.Type)
	}
	if err := ws.send(ctx, Message{Type: MessageWebSocketAccept, Headers: headers}); err != nil {
		return err
	}
	ws.state = wsAccepted
	return nil
}

// ReceiveMessage returns the next frame from the peer. A disconnect is
// surfaced as *WebSocketDisconnect carrying the close code.
func (ws *WebSocket) ReceiveMessage(ctx context.Context) (Message, error) {
	if ws.state != wsAccepted {
		return Message{}, ErrNotAccepted
	}
	for {
		msg, err := ws.receive(ctx)
		if err != nil {
			return Message{}, err
		}
		switch msg.Type {
		case MessageWebSocketReceive:
			return msg, nil
		case MessageWebSocketDisconnect:
			ws.state = wsClosed
			return Message{}, &WebSocketDisconnect{Code: msg.Code}
		}
	}
}

// ReceiveText returns the next text frame's payload.
func (ws *WebSocket) ReceiveText(ctx context.Context) (string, error) {
	msg, err := ws.ReceiveMessage(ctx)
	if err != nil {
		return "", err
	}
	if msg.Text != "" || msg.Body == nil {
		return msg.Text, nil
	}
	return string(msg.Body), nil
}

// ReceiveBytes returns the next frame's payload as bytes.
func (ws *WebSocket) ReceiveBytes(ctx context.Context) ([]byte, error) {
	msg, err := ws.ReceiveMessage(ctx)
	if err != nil {
		return nil, err
	}
	if msg.Body != nil {
		return msg.Body, nil
	}
	return []byte(msg.Text), nil
}

// ReceiveJSON decodes the next frame's payload into v.
func (ws *WebSocket) ReceiveJSON(ctx context.Context, v any) error {
	data, err := ws.ReceiveBytes(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding websocket frame: %w", err)
	}
	return nil
}

// SendText sends a text frame.
func (ws *WebSocket) SendText(ctx context.Context, text string) error {
	if ws.state != wsAccepted {
		return ErrNotAccepted
	}
	return ws.send(ctx, Message{Type: MessageWebSocketSend, Text: text})
}

// SendBytes sends a binary frame.
func (ws *WebSocket) SendBytes(ctx context.Context, data []byte) error {
	if ws.state != wsAccepted {
		return ErrNotAccepted
	}
	return ws.send(ctx, Message{Type: MessageWebSocketSend, Body: data})
}

// SendJSON sends v as a JSON text frame.
func (ws *WebSocket) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding websocket frame: %w", err)
	}
	return ws.SendText(ctx, string(data))
}

// Close emits a close signal with the given code. Closing is permitted in
// any state (an unmatched connection is closed without ever being
// accepted). A second Close is a no-op.
func (ws *WebSocket) Close(ctx context.Context, code int) error {
	if ws.state == wsClosed {
		return nil
	}
	ws.state = wsClosed
	return ws.send(ctx, Message{Type: MessageWebSocketClose, Code: code})
}
