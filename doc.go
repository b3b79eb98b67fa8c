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

// Package skiff is a minimal asynchronous HTTP/WebSocket application
// gateway. It accepts inbound connection descriptions from a transport,
// matches them against registered routes, runs an ordered middleware
// chain, and invokes application handlers, translating results and
// failures into protocol-correct responses.
//
// The dispatcher consumes an abstract transport contract (a connection
// Scope plus receive/send message channels) and owns one state machine
// per connection kind: HTTP request/response, WebSocket connection
// lifetime, and process lifespan signaling. A bridge onto net/http
// (including gorilla/websocket upgrades) is provided in serve.go; any
// other transport can drive the dispatcher through Handle directly.
//
// Registration happens during a configuration phase:
//
//	app := skiff.MustNew(
//	    skiff.WithTitle("orders"),
//	    skiff.WithLogger(logger),
//	)
//	app.Use(requestid.New())
//	app.GET("/orders/{id}", getOrder)
//	app.WebSocket("/orders/feed", orderFeed)
//	app.OnStartup(openDatabase)
//	app.OnShutdown(closeDatabase)
//	app.Serve(":8080")
//
// The app freezes on the first dispatched connection; afterward the route
// tables and the middleware chain are immutable and dispatch requires no
// locking.
package skiff
