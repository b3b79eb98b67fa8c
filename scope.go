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

import "context"

// ScopeType identifies the kind of connection described by a Scope.
type ScopeType string

const (
	// ScopeHTTP is a single HTTP request/response exchange.
	ScopeHTTP ScopeType = "http"

	// ScopeWebSocket is a WebSocket connection lifetime.
	ScopeWebSocket ScopeType = "websocket"

	// ScopeLifespan is the process startup/shutdown signaling channel.
	ScopeLifespan ScopeType = "lifespan"
)

// Message type constants for the transport protocol. Each Message carries
// exactly one of these in its Type field; which other fields are meaningful
// depends on the type.
const (
	// HTTP protocol messages.
	MessageHTTPRequest       = "http.request"
	MessageHTTPResponseStart = "http.response.start"
	MessageHTTPResponseBody  = "http.response.body"
	MessageHTTPDisconnect    = "http.disconnect"

	// WebSocket protocol messages.
	MessageWebSocketConnect    = "websocket.connect"
	MessageWebSocketAccept     = "websocket.accept"
	MessageWebSocketReceive    = "websocket.receive"
	MessageWebSocketSend       = "websocket.send"
	MessageWebSocketClose      = "websocket.close"
	MessageWebSocketDisconnect = "websocket.disconnect"

	// Lifespan protocol messages.
	MessageLifespanStartup          = "lifespan.startup"
	MessageLifespanStartupComplete  = "lifespan.startup.complete"
	MessageLifespanShutdown         = "lifespan.shutdown"
	MessageLifespanShutdownComplete = "lifespan.shutdown.complete"
)

// HeaderField is a single (name, value) header pair. Header order is
// preserved as supplied by the transport; names are not canonicalized
// by this package.
type HeaderField struct {
	Name  string
	Value string
}

// Scope is an immutable description of one inbound connection attempt,
// supplied by the transport. Its lifetime is that single connection attempt;
// the dispatcher never mutates it.
type Scope struct {
	// Type selects the protocol state machine: http, websocket, or lifespan.
	Type ScopeType

	// Method is the HTTP method (empty for websocket and lifespan scopes).
	Method string

	// Path is the URL path of the request or connection.
	Path string

	// RawQuery is the unparsed query string, without the leading '?'.
	RawQuery string

	// Headers are the connection headers in transport order.
	Headers []HeaderField

	// Client is the remote address ("host:port") as reported by the
	// transport, or empty if unknown.
	Client string
}

// Header returns the first value of the named header using a
// case-insensitive comparison, or "" if absent.
func (s Scope) Header(name string) string {
	for _, h := range s.Headers {
		if equalFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Message is one transport message, inbound or outbound. It is a flat
// union: Type determines which fields are set.
type Message struct {
	// Type is one of the Message* constants.
	Type string

	// Status is the HTTP status code (http.response.start).
	Status int

	// Headers are the response headers (http.response.start, websocket.accept).
	Headers []HeaderField

	// Body is the payload (http.request, http.response.body,
	// websocket.receive/send binary frames).
	Body []byte

	// MoreBody reports whether another body message follows
	// (http.request, http.response.body).
	MoreBody bool

	// Text is the payload of a websocket text frame
	// (websocket.receive/send).
	Text string

	// Code is the close code (websocket.close, websocket.disconnect).
	Code int
}

// ReceiveFunc returns the next inbound message for the connection.
// It blocks until a message is available or the context is done.
type ReceiveFunc func(ctx context.Context) (Message, error)

// SendFunc delivers one outbound message to the transport.
type SendFunc func(ctx context.Context, msg Message) error

// equalFold is a fast ASCII-only case-insensitive comparison.
// Header names on the wire are ASCII; this avoids the full Unicode
// machinery of strings.EqualFold in the per-request path.
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
