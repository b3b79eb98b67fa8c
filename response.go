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
	"net/http"
	"strconv"
)

// Response is the outcome of a handled HTTP request. Respond emits exactly
// one http.response.start message (status code, header list) followed by
// one or more http.response.body messages, terminating the exchange.
type Response interface {
	Respond(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error
}

// HeaderSetter is an optional capability of responses that lets middleware
// attach headers after the handler has produced the response.
type HeaderSetter interface {
	AddHeader(name, value string)
}

// StatusReporter is an optional capability of responses exposing the
// status code they will emit. Access-log and metrics middleware use it.
type StatusReporter interface {
	Status() int
}

// header is the shared status/header bookkeeping embedded by the concrete
// response types.
type header struct {
	status  int
	headers []HeaderField
}

// Status returns the status code the response will emit.
func (h *header) Status() int {
	if h.status == 0 {
		return http.StatusOK
	}
	return h.status
}

// AddHeader appends a response header.
func (h *header) AddHeader(name, value string) {
	h.headers = append(h.headers, HeaderField{Name: name, Value: value})
}

// start builds the http.response.start message with the given content type
// and length prepended to any headers middleware attached.
func (h *header) start(contentType string, length int) Message {
	headers := make([]HeaderField, 0, len(h.headers)+2)
	headers = append(headers, HeaderField{Name: "content-type", Value: contentType})
	if length >= 0 {
		headers = append(headers, HeaderField{Name: "content-length", Value: strconv.Itoa(length)})
	}
	headers = append(headers, h.headers...)
	return Message{
		Type:    MessageHTTPResponseStart,
		Status:  h.Status(),
		Headers: headers,
	}
}

// JSONResponse renders its value as a JSON body.
type JSONResponse struct {
	header
	Value any
}

// NewJSON returns a JSON response with the given status code.
func NewJSON(status int, v any) *JSONResponse {
	return &JSONResponse{header: header{status: status}, Value: v}
}

// Respond implements Response.
func (r *JSONResponse) Respond(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	body, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Errorf("encoding response body: %w", err)
	}
	if err := send(ctx, r.start("application/json", len(body))); err != nil {
		return err
	}
	return send(ctx, Message{Type: MessageHTTPResponseBody, Body: body})
}

// TextResponse renders a plain-text body.
type TextResponse struct {
	header
	Text string
}

// NewText returns a text/plain response with the given status code.
func NewText(status int, text string) *TextResponse {
	return &TextResponse{header: header{status: status}, Text: text}
}

// Respond implements Response.
func (r *TextResponse) Respond(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	body := []byte(r.Text)
	if err := send(ctx, r.start("text/plain; charset=utf-8", len(body))); err != nil {
		return err
	}
	return send(ctx, Message{Type: MessageHTTPResponseBody, Body: body})
}

// HTMLResponse renders an HTML body.
type HTMLResponse struct {
	header
	HTML string
}

// NewHTML returns a text/html response with the given status code.
func NewHTML(status int, html string) *HTMLResponse {
	return &HTMLResponse{header: header{status: status}, HTML: html}
}

// Respond implements Response.
func (r *HTMLResponse) Respond(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	body := []byte(r.HTML)
	if err := send(ctx, r.start("text/html; charset=utf-8", len(body))); err != nil {
		return err
	}
	return send(ctx, Message{Type: MessageHTTPResponseBody, Body: body})
}

// RawResponse emits an arbitrary body with an explicit content type.
type RawResponse struct {
	header
	ContentType string
	Body        []byte
}

// NewRaw returns a response emitting body verbatim.
func NewRaw(status int, contentType string, body []byte) *RawResponse {
	return &RawResponse{header: header{status: status}, ContentType: contentType, Body: body}
}

// Respond implements Response.
func (r *RawResponse) Respond(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	if err := send(ctx, r.start(r.ContentType, len(r.Body))); err != nil {
		return err
	}
	return send(ctx, Message{Type: MessageHTTPResponseBody, Body: r.Body})
}

// WriteChunk delivers one body chunk to the transport.
type WriteChunk func(p []byte) error

// StreamingResponse produces its body incrementally. Stream is invoked
// once; every chunk it writes is sent as a body message with more_body
// set, and a final empty body message terminates the exchange when Stream
// returns. Chunks are sent in production order.
type StreamingResponse struct {
	header
	ContentType string
	Stream      func(ctx context.Context, write WriteChunk) error
}

// NewStreaming returns a streaming response. The stream callback owns body
// production; the response start message is sent before it runs.
func NewStreaming(status int, contentType string, stream func(ctx context.Context, write WriteChunk) error) *StreamingResponse {
	return &StreamingResponse{
		header:      header{status: status},
		ContentType: contentType,
		Stream:      stream,
	}
}

// Respond implements Response.
func (r *StreamingResponse) Respond(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	if err := send(ctx, r.start(r.ContentType, -1)); err != nil {
		return err
	}
	write := func(p []byte) error {
		return send(ctx, Message{Type: MessageHTTPResponseBody, Body: p, MoreBody: true})
	}
	if err := r.Stream(ctx, write); err != nil {
		// The start message is already on the wire; all that remains is to
		// terminate the body and surface the error to the dispatcher.
		_ = send(ctx, Message{Type: MessageHTTPResponseBody})
		return fmt.Errorf("streaming response body: %w", err)
	}
	return send(ctx, Message{Type: MessageHTTPResponseBody})
}

// internalErrorResponse is the generic declared-nothing failure body. It
// never exposes internal error text.
func internalErrorResponse() Response {
	return NewJSON(http.StatusInternalServerError, map[string]string{
		"detail": "Internal Server Error",
	})
}

// errorResponse renders a declared failure as its declared status and
// detail.
func errorResponse(e *HTTPError) Response {
	return NewJSON(e.Status, map[string]string{"detail": e.Detail})
}
