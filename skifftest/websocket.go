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

package skifftest

import (
	"context"
	"fmt"

	"github.com/skiff-dev/skiff"
)

// WebSocketSession is a live in-memory WebSocket connection: the
// dispatcher's websocket state machine running against channels. The
// session plays the peer role: it sends frames to the handler and observes
// everything the handler (or the dispatcher) sends back.
type WebSocketSession struct {
	inbound  chan skiff.Message
	outbound chan skiff.Message
	done     chan error
}

// WebSocket opens a websocket connection against the app. The
// websocket.connect message is queued automatically; the session ends when
// the handler returns.
func (c *Client) WebSocket(ctx context.Context, path string, headers ...skiff.HeaderField) *WebSocketSession {
	s := &WebSocketSession{
		inbound:  make(chan skiff.Message, 16),
		outbound: make(chan skiff.Message, 16),
		done:     make(chan error, 1),
	}
	s.inbound <- skiff.Message{Type: skiff.MessageWebSocketConnect}

	scope := skiff.Scope{
		Type:    skiff.ScopeWebSocket,
		Path:    path,
		Headers: headers,
		Client:  "127.0.0.1:54321",
	}
	receive := func(ctx context.Context) (skiff.Message, error) {
		select {
		case msg := <-s.inbound:
			return msg, nil
		case <-ctx.Done():
			return skiff.Message{}, ctx.Err()
		}
	}
	send := func(ctx context.Context, msg skiff.Message) error {
		select {
		case s.outbound <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	go func() {
		s.done <- c.app.Handle(ctx, scope, receive, send)
	}()
	return s
}

// SendText queues a text frame for the handler.
func (s *WebSocketSession) SendText(text string) {
	s.inbound <- skiff.Message{Type: skiff.MessageWebSocketReceive, Text: text}
}

// SendBytes queues a binary frame for the handler.
func (s *WebSocketSession) SendBytes(data []byte) {
	s.inbound <- skiff.Message{Type: skiff.MessageWebSocketReceive, Body: data}
}

// Disconnect simulates the peer going away with the given close code.
func (s *WebSocketSession) Disconnect(code int) {
	s.inbound <- skiff.Message{Type: skiff.MessageWebSocketDisconnect, Code: code}
}

// Next returns the next outbound message from the app.
func (s *WebSocketSession) Next(ctx context.Context) (skiff.Message, error) {
	select {
	case msg := <-s.outbound:
		return msg, nil
	case <-ctx.Done():
		return skiff.Message{}, ctx.Err()
	}
}

// ExpectAccept consumes the next outbound message and fails unless it is
// the accept.
func (s *WebSocketSession) ExpectAccept(ctx context.Context) error {
	msg, err := s.Next(ctx)
	if err != nil {
		return err
	}
	if msg.Type != skiff.MessageWebSocketAccept {
		return fmt.Errorf("expected %s, got %s", skiff.MessageWebSocketAccept, msg.Type)
	}
	return nil
}

// Done waits for the connection's state machine to finish and returns its
// error.
func (s *WebSocketSession) Done(ctx context.Context) error {
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
