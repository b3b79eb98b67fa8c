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
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupportedScopeType indicates a scope type the dispatcher has no
	// state machine for.
	ErrUnsupportedScopeType = errors.New("unsupported scope type")

	// ErrAppFrozen indicates a registration attempt after the app started
	// serving connections.
	ErrAppFrozen = errors.New("cannot register after app is frozen")

	// ErrClientDisconnected indicates the transport reported a disconnect
	// while the request body was being read.
	ErrClientDisconnected = errors.New("client disconnected")

	// ErrNotAccepted indicates a WebSocket send or receive before Accept.
	ErrNotAccepted = errors.New("websocket not accepted")

	// ErrAlreadyAccepted indicates a second Accept on the same WebSocket.
	ErrAlreadyAccepted = errors.New("websocket already accepted")

	// ErrEmptyPattern indicates a route registration with an empty pattern.
	ErrEmptyPattern = errors.New("route pattern must not be empty")

	// ErrEmptyParamName indicates a "{}" segment with no parameter name.
	ErrEmptyParamName = errors.New("route parameter name must not be empty")

	// ErrServerTimeoutInvalid indicates that a server timeout value must be
	// positive.
	ErrServerTimeoutInvalid = errors.New("server timeout must be positive")
)

// HTTPError is a declared failure: an error explicitly carrying the status
// code and detail the ultimate response must have. It passes through every
// middleware layer unchanged; only the outermost boundary converts it into
// a response.
type HTTPError struct {
	Status int
	Detail string
}

// NewHTTPError returns a declared failure with the given status and detail.
func NewHTTPError(status int, detail string) *HTTPError {
	return &HTTPError{Status: status, Detail: detail}
}

// NotFound returns the declared 404 failure used for unmatched routes.
func NotFound(detail string) *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Detail: detail}
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Detail)
}

// WebSocketDisconnect is returned by WebSocket receive operations when the
// peer closes or disconnects. Code carries the close code, if any.
type WebSocketDisconnect struct {
	Code int
}

// Error implements the error interface.
func (e *WebSocketDisconnect) Error() string {
	return fmt.Sprintf("websocket disconnected (code %d)", e.Code)
}
