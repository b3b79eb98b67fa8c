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
	"strings"
)

// PathParams maps a parameter name to the literal path segment it captured.
// A fresh map is produced per match and never shared across requests.
type PathParams map[string]string

// segmentKind discriminates compiled pattern segments.
type segmentKind uint8

const (
	segLiteral segmentKind = iota
	segParam
)

// segment is one compiled token of a route pattern: either a literal that
// must compare exactly, or a named parameter that captures the request
// segment verbatim.
type segment struct {
	kind  segmentKind
	value string // literal text, or parameter name without braces
}

// Route is an immutable registered (pattern, method set, handler) triple.
// Routes are created at registration time and never mutated; every match
// operation only reads them.
type Route struct {
	pattern  string
	segments []segment
	methods  []string
	handler  HandlerFunc
}

// Pattern returns the route's registered path pattern.
func (r *Route) Pattern() string { return r.pattern }

// Methods returns the HTTP methods the route accepts.
func (r *Route) Methods() []string { return r.methods }

// WebSocketRoute is a registered (pattern, handler) pair for WebSocket
// connections. Same shape as Route minus the method dimension.
type WebSocketRoute struct {
	pattern  string
	segments []segment
	handler  WebSocketHandlerFunc
}

// Pattern returns the route's registered path pattern.
func (r *WebSocketRoute) Pattern() string { return r.pattern }

// router holds the two route tables. Both tables are populated only during
// the configuration phase, before any connection is served; after the app
// freezes they are read-only, so matching needs no locking.
type router struct {
	routes   []*Route
	wsRoutes []*WebSocketRoute
}

// compilePattern parses a path pattern into its segment vector once, at
// registration time. A segment wrapped as {name} is a parameter capture;
// anything else is a literal. The segment count is fixed here and never
// changes.
func compilePattern(pattern string) ([]segment, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		// Root pattern "/" has zero segments.
		return []segment{}, nil
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]segment, 0, len(parts))
	for _, part := range parts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, fmt.Errorf("%w: pattern %q", ErrEmptyParamName, pattern)
			}
			segments = append(segments, segment{kind: segParam, value: name})
			continue
		}
		segments = append(segments, segment{kind: segLiteral, value: part})
	}
	return segments, nil
}

// addRoute compiles the pattern and appends a new Route to the table.
// Duplicate (pattern, method) registrations are permitted; matching always
// tries routes in registration order, so the earliest registration wins and
// later duplicates are unreachable.
func (rt *router) addRoute(pattern string, handler HandlerFunc, methods []string) error {
	segments, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	ms := make([]string, len(methods))
	for i, m := range methods {
		ms[i] = strings.ToUpper(m)
	}
	rt.routes = append(rt.routes, &Route{
		pattern:  pattern,
		segments: segments,
		methods:  ms,
		handler:  handler,
	})
	return nil
}

// addWebSocketRoute compiles the pattern and appends a WebSocketRoute to
// the separate WebSocket table.
func (rt *router) addWebSocketRoute(pattern string, handler WebSocketHandlerFunc) error {
	segments, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	rt.wsRoutes = append(rt.wsRoutes, &WebSocketRoute{
		pattern:  pattern,
		segments: segments,
		handler:  handler,
	})
	return nil
}

// matchRoute scans the route table in registration order and returns the
// first route whose method set contains method and whose segment vector
// structurally matches path, along with freshly captured parameters.
//
// The method check is part of the overall match: a path whose shape matches
// a route registered for a different method simply does not match, and the
// caller observes "not found". A 405 is never produced.
//
// Matching is O(routes × segments). Patterns are compiled once at
// registration, so no string parsing happens here beyond walking the path.
func (rt *router) matchRoute(method, path string) (*Route, PathParams, bool) {
	for _, route := range rt.routes {
		if !methodAllowed(route.methods, method) {
			continue
		}
		params, ok := matchSegments(route.segments, path)
		if ok {
			return route, params, true
		}
	}
	return nil, nil, false
}

// matchWebSocketRoute runs the same segment-matching algorithm against the
// WebSocket table. There is no method dimension.
func (rt *router) matchWebSocketRoute(path string) (*WebSocketRoute, PathParams, bool) {
	for _, route := range rt.wsRoutes {
		params, ok := matchSegments(route.segments, path)
		if ok {
			return route, params, true
		}
	}
	return nil, nil, false
}

// methodAllowed reports whether method is in the route's method set.
// Route method sets are tiny (usually one entry), so a linear scan beats
// a map lookup.
func methodAllowed(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

// matchSegments compares a request path against a compiled segment vector.
// The path is walked segment by segment without allocating a slice
// (no strings.Split): literal segments must compare exactly, parameter
// segments capture the request segment verbatim. A match requires equal
// segment counts.
//
// Parameters are returned in a fresh map, allocated only when the pattern
// actually has captures.
func matchSegments(segments []segment, path string) (PathParams, bool) {
	// Walk the path, consuming one segment per compiled token.
	start := 0
	if start < len(path) && path[start] == '/' {
		start = 1
	}
	pathLen := len(path)

	// Root pattern: matches "/" and "" only.
	if len(segments) == 0 {
		if start >= pathLen {
			return PathParams{}, true
		}
		return nil, false
	}

	var params PathParams
	idx := 0
	for start < pathLen {
		end := start
		for end < pathLen && path[end] != '/' {
			end++
		}
		if idx >= len(segments) {
			return nil, false // More path segments than pattern segments.
		}

		value := path[start:end]
		seg := segments[idx]
		switch seg.kind {
		case segLiteral:
			if seg.value != value {
				return nil, false
			}
		case segParam:
			if value == "" {
				// An empty segment ("/users//") never satisfies a
				// parameter. Collapsed slashes fall through to not-found.
				return nil, false
			}
			if params == nil {
				params = make(PathParams, countParams(segments))
			}
			params[seg.value] = value
		}

		idx++
		start = end + 1
	}

	if idx != len(segments) {
		return nil, false // Fewer path segments than pattern segments.
	}
	if params == nil {
		// Literal-only pattern: match with an empty parameter mapping.
		params = PathParams{}
	}
	return params, true
}

// countParams returns the number of parameter segments in a compiled vector.
func countParams(segments []segment) int {
	n := 0
	for _, s := range segments {
		if s.kind == segParam {
			n++
		}
	}
	return n
}
